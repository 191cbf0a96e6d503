package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestia/sessiond/internal/adapters/memstore"
	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	mockauth "github.com/gestia/sessiond/internal/mocks/auth"
	"github.com/gestia/sessiond/internal/observability/notify"
	"github.com/gestia/sessiond/internal/ports"
	"github.com/gestia/sessiond/internal/testutil"
)

type registryFixture struct {
	registry *Registry
	clock    *clockwork.FakeClock
	sink     *mockauth.CaptureSink
}

func newRegistryFixture(t *testing.T, opts RegistryOptions) *registryFixture {
	t.Helper()

	f := &registryFixture{
		clock: clockwork.NewFakeClock(),
		sink:  &mockauth.CaptureSink{},
	}
	if opts.Credentials == nil {
		opts.Credentials = mockauth.SingleUserSource("ada@example.com", "admin-pass", managerPrincipal())
	}
	if opts.Mirror == nil {
		opts.Mirror = memstore.NewMirror()
	}
	if opts.Broadcast == nil {
		opts.Broadcast = memstore.NewHub()
	}
	opts.Notices = f.sink
	opts.Clock = f.clock

	registry, err := NewRegistry(opts)
	require.NoError(t, err)
	t.Cleanup(registry.CloseAll)

	f.registry = registry
	return f
}

func TestNewRegistry_Validation(t *testing.T) {
	mirror := memstore.NewMirror()
	hub := memstore.NewHub()
	creds := &mockauth.FuncCredentialSource{}

	_, err := NewRegistry(RegistryOptions{Mirror: mirror, Broadcast: hub})
	assert.Error(t, err)

	_, err = NewRegistry(RegistryOptions{Credentials: creds, Broadcast: hub})
	assert.Error(t, err)

	_, err = NewRegistry(RegistryOptions{Credentials: creds, Mirror: mirror})
	assert.Error(t, err)
}

func TestRegistry_OpenIsIdempotent(t *testing.T) {
	f := newRegistryFixture(t, RegistryOptions{})

	cs1, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)
	cs2, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)
	assert.Same(t, cs1, cs2)

	got, ok := f.registry.Get("tab-1")
	require.True(t, ok)
	assert.Same(t, cs1, got)

	_, ok = f.registry.Get("tab-2")
	assert.False(t, ok)
}

func TestRegistry_LoginStartsMonitor(t *testing.T) {
	f := newRegistryFixture(t, RegistryOptions{IdleTimeout: time.Minute})
	ctx := context.Background()

	cs, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)

	ok, err := cs.Login(ctx, "ada@example.com", "admin-pass")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cs.Manager.Authenticated())

	// The monitor went live with the session: idling out logs the
	// session back out.
	f.clock.Advance(time.Minute)
	testutil.WaitFor(t, time.Second, func() bool { return cs.Monitor.Expired() })
	f.clock.Advance(2 * time.Second)
	testutil.WaitFor(t, time.Second, func() bool { return !cs.Manager.Authenticated() })

	assert.Contains(t, f.sink.Kinds(), notify.KindSessionExpired)
}

func TestRegistry_FailedLoginLeavesMonitorStopped(t *testing.T) {
	f := newRegistryFixture(t, RegistryOptions{IdleTimeout: time.Minute})
	ctx := context.Background()

	cs, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)

	ok, err := cs.Login(ctx, "ada@example.com", "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	f.clock.Advance(time.Hour)
	settle()
	assert.NotContains(t, f.sink.Kinds(), notify.KindSessionExpired)
}

func TestRegistry_LogoutStopsMonitor(t *testing.T) {
	f := newRegistryFixture(t, RegistryOptions{IdleTimeout: time.Minute})
	ctx := context.Background()

	cs, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)

	ok, err := cs.Login(ctx, "ada@example.com", "admin-pass")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cs.Logout(ctx))
	assert.False(t, cs.Manager.Authenticated())

	f.clock.Advance(time.Hour)
	settle()
	assert.NotContains(t, f.sink.Kinds(), notify.KindSessionExpired)
}

func TestRegistry_RestoreStartsMonitorWhenAuthenticated(t *testing.T) {
	mirror := memstore.NewMirror()
	f := newRegistryFixture(t, RegistryOptions{Mirror: mirror, IdleTimeout: time.Minute})
	ctx := context.Background()

	sess := domainauth.Session{
		ID:        "mirrored",
		Principal: managerPrincipal(),
		ExpiresAt: f.clock.Now().Add(time.Hour),
	}
	require.NoError(t, mirror.Put(ctx, "client-a", sess))

	cs, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)

	require.NoError(t, cs.Restore(ctx, NavNavigate))
	require.True(t, cs.Manager.Authenticated())

	f.clock.Advance(time.Minute)
	testutil.WaitFor(t, time.Second, func() bool { return cs.Monitor.Expired() })
}

func TestRegistry_RestoreWithoutSessionLeavesMonitorStopped(t *testing.T) {
	f := newRegistryFixture(t, RegistryOptions{IdleTimeout: time.Minute})
	ctx := context.Background()

	cs, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)

	require.NoError(t, cs.Restore(ctx, NavNavigate))
	assert.False(t, cs.Manager.Authenticated())

	f.clock.Advance(time.Hour)
	settle()
	assert.Empty(t, f.sink.Kinds())
}

func TestRegistry_CrossTabRevocationStopsMonitor(t *testing.T) {
	// Tab B restores the session tab A created. When A logs out, B's
	// monitor must detach as well so no expiry fires for a dead session.
	f := newRegistryFixture(t, RegistryOptions{IdleTimeout: time.Minute})
	ctx := context.Background()

	tabA, err := f.registry.Open("client-a", "tab-a")
	require.NoError(t, err)
	tabB, err := f.registry.Open("client-a", "tab-b")
	require.NoError(t, err)

	ok, err := tabA.Login(ctx, "ada@example.com", "admin-pass")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, tabB.Restore(ctx, NavNavigate))
	require.True(t, tabB.Manager.Authenticated())

	require.NoError(t, tabA.Logout(ctx))
	testutil.WaitFor(t, time.Second, func() bool { return !tabB.Manager.Authenticated() })
	testutil.WaitFor(t, time.Second, func() bool {
		return strings.Contains(tabB.Monitor.String(), "stopped")
	})

	f.clock.Advance(time.Hour)
	settle()
	assert.NotContains(t, f.sink.Kinds(), notify.KindSessionExpired)
}

// leasedHub delivers signals only while the context a subscription was
// created with is alive, the way the Redis broadcaster's delivery goroutine
// exits on ctx.Done.
type leasedHub struct {
	mu   sync.Mutex
	subs map[string][]leasedSub
}

type leasedSub struct {
	ctx     context.Context
	handler func(value string)
}

func newLeasedHub() *leasedHub {
	return &leasedHub{subs: make(map[string][]leasedSub)}
}

func (h *leasedHub) Publish(_ context.Context, key, value string) error {
	h.mu.Lock()
	subs := append([]leasedSub(nil), h.subs[key]...)
	h.mu.Unlock()

	for _, s := range subs {
		if s.ctx.Err() == nil {
			s.handler(value)
		}
	}
	return nil
}

func (h *leasedHub) Subscribe(ctx context.Context, key string, handler func(value string)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.subs[key] = append(h.subs[key], leasedSub{ctx: ctx, handler: handler})
	h.mu.Unlock()
	return cancel, nil
}

func TestRegistry_SubscriptionOutlivesCallerContexts(t *testing.T) {
	// Tabs are opened by HTTP requests whose contexts end with the request.
	// The invalidation subscription must run on the registry's own lifetime,
	// so a logout in tab A still reaches tab B long after the requests that
	// opened both tabs are gone.
	f := newRegistryFixture(t, RegistryOptions{
		Broadcast:   newLeasedHub(),
		IdleTimeout: time.Minute,
	})

	withRequestCtx := func(fn func(ctx context.Context)) {
		ctx, cancel := context.WithCancel(context.Background())
		fn(ctx)
		cancel()
	}

	var tabA, tabB *ClientSession
	withRequestCtx(func(_ context.Context) {
		var err error
		tabA, err = f.registry.Open("client-a", "tab-a")
		require.NoError(t, err)
	})
	withRequestCtx(func(_ context.Context) {
		var err error
		tabB, err = f.registry.Open("client-a", "tab-b")
		require.NoError(t, err)
	})

	withRequestCtx(func(ctx context.Context) {
		ok, err := tabA.Login(ctx, "ada@example.com", "admin-pass")
		require.NoError(t, err)
		require.True(t, ok)
	})
	withRequestCtx(func(ctx context.Context) {
		require.NoError(t, tabB.Restore(ctx, NavNavigate))
		require.True(t, tabB.Manager.Authenticated())
	})

	withRequestCtx(func(ctx context.Context) {
		require.NoError(t, tabA.Logout(ctx))
	})
	testutil.WaitFor(t, time.Second, func() bool { return !tabB.Manager.Authenticated() })
	assert.Contains(t, f.sink.Kinds(), notify.KindSessionRevoked)
}

func TestRegistry_ActivityFeedsMonitor(t *testing.T) {
	f := newRegistryFixture(t, RegistryOptions{IdleTimeout: time.Minute})
	ctx := context.Background()

	cs, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)

	ok, err := cs.Login(ctx, "ada@example.com", "admin-pass")
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.Advance(50 * time.Second)
	cs.Activity.Report(ports.ActivityScroll)

	f.clock.Advance(10 * time.Second)
	settle()
	assert.False(t, cs.Monitor.Expired())

	f.clock.Advance(50 * time.Second)
	testutil.WaitFor(t, time.Second, func() bool { return cs.Monitor.Expired() })
}

func TestRegistry_Close(t *testing.T) {
	f := newRegistryFixture(t, RegistryOptions{})
	ctx := context.Background()

	cs, err := f.registry.Open("client-a", "tab-1")
	require.NoError(t, err)

	ok, err := cs.Login(ctx, "ada@example.com", "admin-pass")
	require.NoError(t, err)
	require.True(t, ok)

	f.registry.Close("tab-1")
	_, found := f.registry.Get("tab-1")
	assert.False(t, found)

	// Closing a tab does not end the session; the mirror record stays so
	// another tab can restore it.
	cs2, err := f.registry.Open("client-a", "tab-2")
	require.NoError(t, err)
	require.NoError(t, cs2.Restore(ctx, NavNavigate))
	assert.True(t, cs2.Manager.Authenticated())

	// Closing an unknown instance is a no-op.
	f.registry.Close("tab-404")
}
