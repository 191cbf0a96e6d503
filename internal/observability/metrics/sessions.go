// Package metrics emits standardised session lifecycle metrics.
package metrics

import (
	"context"
	"time"

	obserrors "github.com/gestia/sessiond/internal/observability/errors"
	"github.com/gestia/sessiond/internal/observability/notify"
	"github.com/gestia/sessiond/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// LoginMetric captures one login attempt for metric emission.
type LoginMetric struct {
	Result   string
	Duration time.Duration
	Err      error
}

// EmitLogin emits the attempt counter and duration for one login call.
func EmitLogin(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("login.attempts", 1, tags)
	if in.Duration > 0 {
		sink.Timing("login.duration", in.Duration, tags)
	}
}

// noticeMetrics maps notice kinds to counter names. Unknown kinds fall back
// to a generic counter tagged with the kind.
var noticeMetrics = map[string]string{
	notify.KindIdleWarning:    "session.idle_warnings",
	notify.KindSessionExpired: "session.expirations",
	notify.KindLoginFailed:    "login.failures",
	notify.KindSessionRevoked: "session.revocations",
}

// NoticeSink counts session lifecycle notices as they are emitted. It sits
// alongside the log sink in a notify.Fanout.
type NoticeSink struct {
	Sink statsd.Sink
}

var _ notify.Sink = NoticeSink{}

// Send implements notify.Sink.
func (s NoticeSink) Send(_ context.Context, n notify.Notice) error {
	if s.Sink == nil {
		return nil
	}
	if name, ok := noticeMetrics[n.Kind]; ok {
		s.Sink.Count(name, 1, nil)
		return nil
	}
	s.Sink.Count("session.notices", 1, map[string]string{"kind": n.Kind})
	return nil
}
