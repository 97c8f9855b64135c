package monitor

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ipmonitor/internal/dns"
	"ipmonitor/internal/notify"
	"ipmonitor/internal/resolver"
	"ipmonitor/internal/state"
	"ipmonitor/internal/types"
)

// callLog records collaborator calls across fakes in the order they happen
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeResolver struct {
	mu      sync.Mutex
	results []string
	errs    []error
	calls   int
	panics  bool
}

// Resolve fails with errs[n] when set, otherwise returns results in order
// and repeats the last one
func (f *fakeResolver) Resolve(context.Context) (netip.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("resolver exploded")
	}
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return netip.Addr{}, f.errs[call]
	}
	return netip.MustParseAddr(f.results[min(call, len(f.results)-1)]), nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu      sync.Mutex
	stored  *types.PersistedState
	loadErr error
	saveErr error
	saves   []types.PersistedState
	log     *callLog
}

func (f *fakeStore) Load(context.Context) (*types.PersistedState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.stored, nil
}

func (f *fakeStore) Save(_ context.Context, st types.PersistedState) error {
	f.log.add("save")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, st)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored = &st
	return nil
}

func (f *fakeStore) Describe() string { return "memory" }

type fakeNotifier struct {
	mu       sync.Mutex
	enabled  bool
	startup  bool
	err      error
	changes  []types.ChangeEvent
	startups []notify.Startup
	failures []notify.DNSFailure
	log      *callLog
}

func (f *fakeNotifier) Enabled() bool        { return f.enabled }
func (f *fakeNotifier) StartupEnabled() bool { return f.startup }

func (f *fakeNotifier) NotifyChange(_ context.Context, event types.ChangeEvent) error {
	f.log.add("notify")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, event)
	return f.err
}

func (f *fakeNotifier) NotifyStartup(_ context.Context, s notify.Startup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startups = append(f.startups, s)
	return f.err
}

func (f *fakeNotifier) NotifyDNSError(_ context.Context, d notify.DNSFailure) error {
	f.log.add("dns_error")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, d)
	return f.err
}

func (f *fakeNotifier) startupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.startups)
}

type fakeDNS struct {
	mu      sync.Mutex
	err     error
	updates []netip.Addr
	log     *callLog
}

func (f *fakeDNS) UpdateRecord(_ context.Context, ip netip.Addr) error {
	f.log.add("dns")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, ip)
	return f.err
}

func (f *fakeDNS) Records() []string { return []string{"home.example.com", "dokploy.example.com"} }
func (f *fakeDNS) Provider() string  { return "fake" }

type fakeHistory struct {
	mu      sync.Mutex
	err     error
	records []types.ChangeRecord
	log     *callLog
}

func (f *fakeHistory) Record(_ context.Context, rec types.ChangeRecord) (types.ChangeRecord, error) {
	f.log.add("history")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return rec, f.err
}

type fixture struct {
	resolver *fakeResolver
	store    *fakeStore
	notifier *fakeNotifier
	dns      *fakeDNS
	history  *fakeHistory
	calls    *callLog
	monitor  *Monitor
}

func newFixture(t *testing.T, interval time.Duration, ips ...string) *fixture {
	t.Helper()
	calls := &callLog{}
	f := &fixture{
		resolver: &fakeResolver{results: ips},
		store:    &fakeStore{log: calls},
		notifier: &fakeNotifier{enabled: true, startup: true, log: calls},
		dns:      &fakeDNS{log: calls},
		history:  &fakeHistory{log: calls},
		calls:    calls,
	}
	m, err := New(Config{CheckInterval: interval}, Deps{
		Resolver: f.resolver,
		Store:    f.store,
		Notifier: f.notifier,
		DNS:      f.dns,
		History:  f.history,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	f.monitor = m
	return f
}

func stateOf(ip string) *types.PersistedState {
	return &types.PersistedState{IP: netip.MustParseAddr(ip), ObservedAt: time.Now().Add(-time.Hour)}
}

func TestNew(t *testing.T) {
	base := Deps{
		Resolver: &fakeResolver{results: []string{"203.0.113.5"}},
		Store:    &fakeStore{},
		Notifier: &fakeNotifier{},
		DNS:      &fakeDNS{},
	}

	tests := []struct {
		name    string
		cfg     Config
		mutate  func(*Deps)
		wantErr string
	}{
		{name: "valid", cfg: Config{CheckInterval: time.Minute}},
		{name: "zero interval", cfg: Config{}, wantErr: "check interval"},
		{name: "missing resolver", cfg: Config{CheckInterval: time.Minute}, mutate: func(d *Deps) { d.Resolver = nil }, wantErr: "resolver"},
		{name: "missing store", cfg: Config{CheckInterval: time.Minute}, mutate: func(d *Deps) { d.Store = nil }, wantErr: "state store"},
		{name: "missing notifier", cfg: Config{CheckInterval: time.Minute}, mutate: func(d *Deps) { d.Notifier = nil }, wantErr: "notifier"},
		{name: "missing dns", cfg: Config{CheckInterval: time.Minute}, mutate: func(d *Deps) { d.DNS = nil }, wantErr: "dns updater"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := base
			if tt.mutate != nil {
				tt.mutate(&deps)
			}
			m, err := New(tt.cfg, deps, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}
}

func TestRunCycle_FirstRun(t *testing.T) {
	f := newFixture(t, time.Minute, "203.0.113.5")

	next, err := f.monitor.RunCycle(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, next)

	want := netip.MustParseAddr("203.0.113.5")
	assert.Equal(t, want, next.IP)

	require.Len(t, f.notifier.changes, 1)
	assert.Equal(t, types.FirstRun, f.notifier.changes[0].Kind)
	assert.False(t, f.notifier.changes[0].HasPrevious())
	assert.Equal(t, []netip.Addr{want}, f.dns.updates)

	require.Len(t, f.store.saves, 1)
	assert.Equal(t, want, f.store.saves[0].IP)

	require.Len(t, f.history.records, 1)
	rec := f.history.records[0]
	assert.Equal(t, "first_run", rec.Kind)
	assert.Empty(t, rec.PreviousIP)
	assert.Equal(t, "203.0.113.5", rec.CurrentIP)
	assert.True(t, rec.DNSUpdated)
	assert.True(t, rec.Notified)
}

func TestRunCycle_Unchanged(t *testing.T) {
	f := newFixture(t, time.Minute, "203.0.113.5")
	stored := stateOf("203.0.113.5")

	next, err := f.monitor.RunCycle(context.Background(), stored)
	require.NoError(t, err)

	assert.Same(t, stored, next)
	assert.Empty(t, f.notifier.changes)
	assert.Empty(t, f.dns.updates)
	assert.Empty(t, f.store.saves)
	assert.Empty(t, f.history.records)
}

func TestRunCycle_ChangedWithDNSFailure(t *testing.T) {
	f := newFixture(t, time.Minute, "198.51.100.9")
	f.dns.err = errors.Join(
		&dns.Error{Provider: "fake", Record: "home.example.com", StatusCode: 422, Message: "invalid"},
		&dns.Error{Provider: "fake", Record: "dokploy.example.com", Message: "connection refused"},
	)

	next, err := f.monitor.RunCycle(context.Background(), stateOf("203.0.113.5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dns update failed")

	want := netip.MustParseAddr("198.51.100.9")
	require.NotNil(t, next)
	assert.Equal(t, want, next.IP, "state advances even when dns fails")

	require.Len(t, f.notifier.changes, 1)
	assert.Equal(t, types.Changed, f.notifier.changes[0].Kind)
	assert.Equal(t, netip.MustParseAddr("203.0.113.5"), f.notifier.changes[0].Previous)

	require.Len(t, f.notifier.failures, 2)
	assert.Equal(t, "home.example.com", f.notifier.failures[0].Error.Record)
	assert.Equal(t, 422, f.notifier.failures[0].Error.StatusCode)
	assert.Equal(t, "dokploy.example.com", f.notifier.failures[1].Error.Record)
	assert.Equal(t, want, f.notifier.failures[1].IP)

	require.Len(t, f.store.saves, 1)
	assert.Equal(t, want, f.store.saves[0].IP)

	require.Len(t, f.history.records, 1)
	assert.False(t, f.history.records[0].DNSUpdated)
	assert.NotEmpty(t, f.history.records[0].DNSError)
	assert.Equal(t, "203.0.113.5", f.history.records[0].PreviousIP)
}

func TestRunCycle_Order(t *testing.T) {
	dnsErr := &dns.Error{Provider: "fake", Record: "home.example.com", Message: "connection refused"}

	tests := []struct {
		name   string
		stored *types.PersistedState
		dnsErr error
		want   []string
	}{
		{
			name: "first run",
			want: []string{"notify", "dns", "history", "save"},
		},
		{
			name:   "changed",
			stored: stateOf("203.0.113.5"),
			want:   []string{"notify", "dns", "history", "save"},
		},
		{
			name:   "changed with dns failure",
			stored: stateOf("203.0.113.5"),
			dnsErr: dnsErr,
			want:   []string{"notify", "dns", "dns_error", "history", "save"},
		},
		{
			name:   "first run with dns failure",
			dnsErr: dnsErr,
			want:   []string{"notify", "dns", "dns_error", "history", "save"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Minute, "198.51.100.9")
			f.dns.err = tt.dnsErr

			_, _ = f.monitor.RunCycle(context.Background(), tt.stored)
			assert.Equal(t, tt.want, f.calls.list())
		})
	}
}

func TestRunCycle_BestEffortCollaborators(t *testing.T) {
	f := newFixture(t, time.Minute, "198.51.100.9")
	f.notifier.err = errors.New("discord: HTTP 500")
	f.history.err = errors.New("database is locked")
	f.store.saveErr = errors.New("read-only file system")

	next, err := f.monitor.RunCycle(context.Background(), stateOf("203.0.113.5"))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, netip.MustParseAddr("198.51.100.9"), next.IP)

	assert.Len(t, f.dns.updates, 1)
	assert.Len(t, f.store.saves, 1)
	require.Len(t, f.history.records, 1)
	assert.False(t, f.history.records[0].Notified)
}

func TestRunCycle_ResolveFailureKeepsState(t *testing.T) {
	f := newFixture(t, time.Minute, "203.0.113.5")
	f.resolver.errs = []error{&resolver.ExhaustedError{}}
	stored := stateOf("203.0.113.5")

	next, err := f.monitor.RunCycle(context.Background(), stored)
	require.Error(t, err)

	var exhausted *resolver.ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
	assert.Same(t, stored, next)
	assert.Empty(t, f.notifier.changes)
	assert.Empty(t, f.notifier.startups)
	assert.Empty(t, f.store.saves)
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name      string
		stored    *types.PersistedState
		loadErr   error
		wantKind  string
		wantSaves int
	}{
		{name: "missing state", wantKind: "first_run", wantSaves: 1},
		{name: "corrupt state", loadErr: state.ErrCorrupt, wantKind: "first_run", wantSaves: 1},
		{name: "unreadable state", loadErr: errors.New("permission denied"), wantKind: "first_run", wantSaves: 1},
		{name: "same address", stored: stateOf("203.0.113.5"), wantKind: "unchanged"},
		{name: "new address", stored: stateOf("192.0.2.1"), wantKind: "changed", wantSaves: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Minute, "203.0.113.5")
			f.store.stored = tt.stored
			f.store.loadErr = tt.loadErr

			require.NoError(t, f.monitor.RunOnce(context.Background()))

			st := f.monitor.Status()
			assert.Equal(t, tt.wantKind, st.LastKind)
			assert.Equal(t, int64(1), st.Cycles)
			assert.Empty(t, st.LastError)
			require.NotNil(t, st.State)
			assert.Equal(t, netip.MustParseAddr("203.0.113.5"), st.State.IP)
			assert.Len(t, f.store.saves, tt.wantSaves)
		})
	}
}

func TestSaveFailureStillUpdatesMemory(t *testing.T) {
	f := newFixture(t, time.Minute, "203.0.113.5", "203.0.113.5")
	f.store.saveErr = errors.New("disk full")

	require.NoError(t, f.monitor.RunOnce(context.Background()))
	require.NoError(t, f.monitor.RunOnce(context.Background()))

	assert.Len(t, f.notifier.changes, 1, "second cycle compares against the in-memory state")
	assert.Len(t, f.dns.updates, 1)
	assert.Equal(t, "unchanged", f.monitor.Status().LastKind)
}

func TestPanicIsRecovered(t *testing.T) {
	f := newFixture(t, time.Minute, "203.0.113.5")
	f.store.stored = stateOf("192.0.2.1")
	f.resolver.panics = true

	err := f.monitor.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	st := f.monitor.Status()
	assert.Equal(t, int64(1), st.Cycles)
	assert.Contains(t, st.LastError, "resolver exploded")
	require.NotNil(t, st.State)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), st.State.IP)
}

func TestStartupNotification(t *testing.T) {
	t.Run("sent once after first successful resolve", func(t *testing.T) {
		f := newFixture(t, time.Minute, "203.0.113.5")
		f.resolver.errs = []error{errors.New("all sources down")}

		require.Error(t, f.monitor.RunOnce(context.Background()))
		assert.Equal(t, 0, f.notifier.startupCount())

		require.NoError(t, f.monitor.RunOnce(context.Background()))
		require.NoError(t, f.monitor.RunOnce(context.Background()))
		require.Equal(t, 1, f.notifier.startupCount())

		s := f.notifier.startups[0]
		assert.Equal(t, netip.MustParseAddr("203.0.113.5"), s.IP)
		assert.Equal(t, time.Minute, s.CheckInterval)
		assert.Equal(t, f.dns.Records(), s.Records)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, time.Minute, "203.0.113.5")
		f.notifier.startup = false

		require.NoError(t, f.monitor.RunOnce(context.Background()))
		assert.Equal(t, 0, f.notifier.startupCount())
	})
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond, "203.0.113.5", "198.51.100.9")

	errCh := make(chan error, 1)
	go func() { errCh <- f.monitor.Start() }()

	require.Eventually(t, func() bool {
		return f.monitor.Status().Cycles >= 3
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.monitor.Stop(ctx))
	require.NoError(t, <-errCh)

	assert.Equal(t, 1, f.notifier.startupCount())
	assert.GreaterOrEqual(t, f.resolver.callCount(), 3)

	st := f.monitor.Status()
	require.NotNil(t, st.State)
	assert.Equal(t, netip.MustParseAddr("198.51.100.9"), st.State.IP)
	assert.Equal(t, "unchanged", st.LastKind)

	assert.Error(t, f.monitor.Start(), "a monitor cannot be restarted")
}

func TestStopBeforeStart(t *testing.T) {
	f := newFixture(t, time.Minute, "203.0.113.5")

	require.NoError(t, f.monitor.Stop(context.Background()))
	require.NoError(t, f.monitor.Start())
	assert.Equal(t, 0, f.resolver.callCount())
}
