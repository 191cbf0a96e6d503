package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestia/sessiond/internal/observability/notify"
)

type recordedMetric struct {
	name string
	tags map[string]string
}

type fakeSink struct {
	counts  []recordedMetric
	timings []recordedMetric
}

func (f *fakeSink) Count(name string, _ int64, tags map[string]string) {
	f.counts = append(f.counts, recordedMetric{name, tags})
}

func (f *fakeSink) Gauge(string, float64, map[string]string) {}

func (f *fakeSink) Timing(name string, _ time.Duration, tags map[string]string) {
	f.timings = append(f.timings, recordedMetric{name, tags})
}

func TestEmitLogin(t *testing.T) {
	sink := &fakeSink{}

	EmitLogin(sink, LoginMetric{Result: ResultSuccess, Duration: 100 * time.Millisecond})
	require.Len(t, sink.counts, 1)
	assert.Equal(t, "login.attempts", sink.counts[0].name)
	assert.Equal(t, ResultSuccess, sink.counts[0].tags["result"])
	require.Len(t, sink.timings, 1)
	assert.Equal(t, "login.duration", sink.timings[0].name)
}

func TestEmitLogin_ErrorClass(t *testing.T) {
	sink := &fakeSink{}

	EmitLogin(sink, LoginMetric{Result: ResultError, Err: context.DeadlineExceeded})
	require.Len(t, sink.counts, 1)
	assert.NotEmpty(t, sink.counts[0].tags["error_class"])
	assert.Empty(t, sink.timings, "zero duration emits no timing")
}

func TestEmitLogin_NilSink(t *testing.T) {
	EmitLogin(nil, LoginMetric{Result: ResultSuccess})
}

func TestNoticeSink(t *testing.T) {
	sink := &fakeSink{}
	ns := NoticeSink{Sink: sink}
	ctx := context.Background()

	require.NoError(t, ns.Send(ctx, notify.Notice{Kind: notify.KindSessionExpired}))
	require.NoError(t, ns.Send(ctx, notify.Notice{Kind: notify.KindIdleWarning}))
	require.NoError(t, ns.Send(ctx, notify.Notice{Kind: "custom"}))

	require.Len(t, sink.counts, 3)
	assert.Equal(t, "session.expirations", sink.counts[0].name)
	assert.Equal(t, "session.idle_warnings", sink.counts[1].name)
	assert.Equal(t, "session.notices", sink.counts[2].name)
	assert.Equal(t, "custom", sink.counts[2].tags["kind"])

	// A sink-less NoticeSink is a no-op.
	require.NoError(t, NoticeSink{}.Send(ctx, notify.Notice{Kind: notify.KindLoginFailed}))
}
