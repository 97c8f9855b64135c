package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"ipmonitor/internal/detector"
	"ipmonitor/internal/dns"
	"ipmonitor/internal/notify"
	"ipmonitor/internal/state"
	"ipmonitor/internal/types"

	"go.uber.org/zap"
)

// kindResolveFailed is reported in the status when a cycle could not resolve
const kindResolveFailed = "resolve_failed"

// Resolver returns the current public address
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

// Notifier delivers change, startup and DNS failure notifications
type Notifier interface {
	Enabled() bool
	StartupEnabled() bool
	NotifyChange(ctx context.Context, event types.ChangeEvent) error
	NotifyStartup(ctx context.Context, startup notify.Startup) error
	NotifyDNSError(ctx context.Context, failure notify.DNSFailure) error
}

// HistoryRecorder stores change records. It is optional.
type HistoryRecorder interface {
	Record(ctx context.Context, rec types.ChangeRecord) (types.ChangeRecord, error)
}

// MetricsRecorder receives cycle outcomes
type MetricsRecorder interface {
	RecordCheck()
	RecordError(err error)
	RecordChange(kind types.ChangeKind)
	RecordDNSUpdate(err error)
	RecordStateSave(err error)
}

// Config represents scheduler configuration
type Config struct {
	CheckInterval time.Duration
	TestMode      bool
}

// Deps are the collaborators a Monitor drives
type Deps struct {
	Resolver Resolver
	Store    state.Store
	Notifier Notifier
	DNS      dns.Updater
	History  HistoryRecorder
	Metrics  MetricsRecorder
}

// Monitor handles IP monitoring
type Monitor struct {
	config   Config
	resolver Resolver
	store    state.Store
	notifier Notifier
	dns      dns.Updater
	history  HistoryRecorder
	metrics  MetricsRecorder
	logger   *zap.Logger
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool

	mu          sync.RWMutex
	current     *types.PersistedState
	loaded      bool
	startupSent bool
	status      types.MonitorStatus
}

// New creates a Monitor. Resolver, Store, Notifier and DNS are required.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Monitor, error) {
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive, got %s", cfg.CheckInterval)
	}
	switch {
	case deps.Resolver == nil:
		return nil, errors.New("monitor requires a resolver")
	case deps.Store == nil:
		return nil, errors.New("monitor requires a state store")
	case deps.Notifier == nil:
		return nil, errors.New("monitor requires a notifier")
	case deps.DNS == nil:
		return nil, errors.New("monitor requires a dns updater")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now

	return &Monitor{
		config:   cfg,
		resolver: deps.Resolver,
		store:    deps.Store,
		notifier: deps.Notifier,
		dns:      deps.DNS,
		history:  deps.History,
		metrics:  deps.Metrics,
		logger:   logger.Named("monitor"),
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		status: types.MonitorStatus{
			StartedAt:     now(),
			TestMode:      cfg.TestMode,
			Records:       deps.DNS.Records(),
			CheckInterval: cfg.CheckInterval.String(),
		},
	}, nil
}

// Start loads the stored state, runs one cycle immediately and then one per
// interval until Stop is called. It blocks until the loop exits.
func (m *Monitor) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("monitor already started")
	}
	defer close(m.done)

	if m.ctx.Err() != nil {
		return nil
	}

	m.logger.Info("Starting IP monitor",
		zap.Duration("check_interval", m.config.CheckInterval),
		zap.Strings("records", m.dns.Records()),
		zap.String("dns_provider", m.dns.Provider()),
		zap.String("state", m.store.Describe()),
		zap.Bool("test_mode", m.config.TestMode))

	// Cycles outlive the stop signal so the in-flight one can finish
	cycleCtx := context.WithoutCancel(m.ctx)

	m.loadState(cycleCtx)
	_ = m.safeCycle(cycleCtx)

	timer := time.NewTimer(m.config.CheckInterval)
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("IP monitor loop stopped")
			return nil
		case <-timer.C:
			_ = m.safeCycle(cycleCtx)
			timer.Reset(m.config.CheckInterval)
		}
	}
}

// RunOnce loads the stored state if needed and runs a single cycle
func (m *Monitor) RunOnce(ctx context.Context) error {
	m.loadState(ctx)
	return m.safeCycle(ctx)
}

// Stop gracefully stops the monitor
func (m *Monitor) Stop(ctx context.Context) error {
	m.logger.Info("Stopping IP monitor...")
	m.cancel()

	if !m.started.Load() {
		return nil
	}

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Status returns a snapshot of the scheduler state
func (m *Monitor) Status() types.MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := m.status
	st.Records = slices.Clone(m.status.Records)
	if m.current != nil {
		cur := *m.current
		st.State = &cur
	}
	return st
}

// loadState reads the stored state once. Missing and unreadable records
// both leave the monitor without a previous address.
func (m *Monitor) loadState(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return
	}
	m.loaded = true

	st, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, state.ErrCorrupt):
		m.logger.Warn("Stored state is corrupt, treating as first run",
			zap.String("state", m.store.Describe()), zap.Error(err))
	case err != nil:
		m.logger.Warn("Failed to load stored state, treating as first run",
			zap.String("state", m.store.Describe()), zap.Error(err))
	case st == nil:
		m.logger.Info("No stored state found", zap.String("state", m.store.Describe()))
	default:
		m.current = st
		m.logger.Info("Loaded stored state",
			zap.String("ip", st.IP.String()),
			zap.Time("observed_at", st.ObservedAt))
	}
}

// safeCycle runs one cycle, recovering panics, and records the outcome
func (m *Monitor) safeCycle(ctx context.Context) error {
	m.mu.RLock()
	stored := m.current
	m.mu.RUnlock()

	start := m.now()
	next, kind, err := m.recoverCycle(ctx, stored)

	m.mu.Lock()
	m.current = next
	m.status.Cycles++
	m.status.LastCycleAt = start
	m.status.LastKind = kind
	m.status.LastError = ""
	if err != nil {
		m.status.LastError = err.Error()
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("IP check failed", zap.Error(err))
	}
	m.logger.Debug("IP check completed", zap.Duration("duration", m.now().Sub(start)))
	return err
}

func (m *Monitor) recoverCycle(ctx context.Context, stored *types.PersistedState) (next *types.PersistedState, kind string, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, kind = stored, ""
			err = fmt.Errorf("cycle panicked: %v", r)
			m.metrics.RecordError(err)
			m.logger.Error("Recovered from panic in cycle",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	return m.cycle(ctx, stored)
}

// RunCycle performs one check against stored and returns the state to carry
// into the next cycle. The returned state is valid even when err is not nil:
// a DNS failure still advances the state to the observed address.
func (m *Monitor) RunCycle(ctx context.Context, stored *types.PersistedState) (*types.PersistedState, error) {
	next, _, err := m.cycle(ctx, stored)
	return next, err
}

func (m *Monitor) cycle(ctx context.Context, stored *types.PersistedState) (*types.PersistedState, string, error) {
	m.metrics.RecordCheck()

	ip, err := m.resolver.Resolve(ctx)
	if err != nil {
		m.metrics.RecordError(err)
		return stored, kindResolveFailed, fmt.Errorf("failed to resolve public IP: %w", err)
	}

	m.announceStartup(ctx, ip)

	event := detector.Detect(ip, stored, m.now())
	m.metrics.RecordChange(event.Kind)

	if !event.Kind.Actionable() {
		m.logger.Debug("IP unchanged", zap.String("ip", event.Current.String()))
		return stored, event.Kind.String(), nil
	}

	fields := []zap.Field{
		zap.String("kind", event.Kind.String()),
		zap.String("ip", event.Current.String()),
	}
	if event.HasPrevious() {
		fields = append(fields, zap.String("previous_ip", event.Previous.String()))
	}
	m.logger.Info("IP change detected", fields...)

	rec := types.ChangeRecord{
		Kind:       event.Kind.String(),
		CurrentIP:  event.Current.String(),
		ObservedAt: event.ObservedAt,
	}
	if event.HasPrevious() {
		rec.PreviousIP = event.Previous.String()
	}

	if err := m.notifier.NotifyChange(ctx, event); err != nil {
		m.logger.Warn("Failed to send change notification", zap.Error(err))
	} else {
		rec.Notified = m.notifier.Enabled()
	}

	dnsErr := m.updateDNS(ctx, event)
	if dnsErr != nil {
		rec.DNSError = dnsErr.Error()
	} else {
		rec.DNSUpdated = true
	}

	if m.history != nil {
		if _, err := m.history.Record(ctx, rec); err != nil {
			m.logger.Warn("Failed to record change history", zap.Error(err))
		}
	}

	next := event.State()
	saveErr := m.store.Save(ctx, next)
	m.metrics.RecordStateSave(saveErr)
	if saveErr != nil {
		m.logger.Warn("Failed to persist state, keeping it in memory",
			zap.String("state", m.store.Describe()),
			zap.Error(saveErr))
	}

	if dnsErr != nil {
		return &next, event.Kind.String(), fmt.Errorf("dns update failed: %w", dnsErr)
	}
	return &next, event.Kind.String(), nil
}

// updateDNS points the managed records at the event's address and reports
// each failed record through the notifier
func (m *Monitor) updateDNS(ctx context.Context, event types.ChangeEvent) error {
	err := m.dns.UpdateRecord(ctx, event.Current)
	m.metrics.RecordDNSUpdate(err)
	if err == nil {
		return nil
	}

	failures := dns.SplitErrors(err)
	m.logger.Error("DNS update failed",
		zap.String("provider", m.dns.Provider()),
		zap.String("ip", event.Current.String()),
		zap.Int("failed_records", len(failures)),
		zap.Error(err))

	for _, failure := range failures {
		nerr := m.notifier.NotifyDNSError(ctx, notify.DNSFailure{
			IP:         event.Current,
			Error:      failure,
			ObservedAt: event.ObservedAt,
		})
		if nerr != nil {
			m.logger.Warn("Failed to send DNS error notification",
				zap.String("record", failure.Record),
				zap.Error(nerr))
		}
	}
	return err
}

// announceStartup sends the startup notification after the first
// successful resolution
func (m *Monitor) announceStartup(ctx context.Context, ip netip.Addr) {
	m.mu.Lock()
	if m.startupSent {
		m.mu.Unlock()
		return
	}
	m.startupSent = true
	startedAt := m.status.StartedAt
	m.mu.Unlock()

	if !m.notifier.StartupEnabled() {
		return
	}

	err := m.notifier.NotifyStartup(ctx, notify.Startup{
		IP:            ip,
		CheckInterval: m.config.CheckInterval,
		TestMode:      m.config.TestMode,
		Records:       m.dns.Records(),
		StartedAt:     startedAt,
	})
	if err != nil {
		m.logger.Warn("Failed to send startup notification", zap.Error(err))
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordCheck() {}
func (nopMetrics) RecordError(error) {}
func (nopMetrics) RecordChange(types.ChangeKind) {}
func (nopMetrics) RecordDNSUpdate(error) {}
func (nopMetrics) RecordStateSave(error) {}
