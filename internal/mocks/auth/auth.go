// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"sync"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/observability/notify"
	"github.com/gestia/sessiond/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialSource = (*FuncCredentialSource)(nil)
	_ notify.Sink            = (*CaptureSink)(nil)
)

// FuncCredentialSource adapts a function (or a fixed outcome) to the
// CredentialSource port.
type FuncCredentialSource struct {
	VerifyFunc func(ctx context.Context, email, password string) (domainauth.Principal, bool, error)

	// Fixed outcome used when VerifyFunc is nil.
	Principal domainauth.Principal
	OK        bool
}

func (f *FuncCredentialSource) Verify(ctx context.Context, email, password string) (domainauth.Principal, bool, error) {
	if f.VerifyFunc != nil {
		return f.VerifyFunc(ctx, email, password)
	}
	return f.Principal, f.OK, nil
}

// SingleUserSource accepts exactly one email/password pair.
func SingleUserSource(email, password string, principal domainauth.Principal) *FuncCredentialSource {
	return &FuncCredentialSource{
		VerifyFunc: func(_ context.Context, e, p string) (domainauth.Principal, bool, error) {
			if e == email && p == password {
				return principal, true, nil
			}
			return domainauth.Principal{}, false, nil
		},
	}
}

// CaptureSink records every notice it receives.
type CaptureSink struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (c *CaptureSink) Send(_ context.Context, n notify.Notice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
	return nil
}

// Notices returns a copy of everything captured so far.
func (c *CaptureSink) Notices() []notify.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// Kinds returns the captured notice kinds in order.
func (c *CaptureSink) Kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, len(c.notices))
	for i, n := range c.notices {
		kinds[i] = n.Kind
	}
	return kinds
}

// Reset clears the captured notices.
func (c *CaptureSink) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = nil
}
