package metrics

import (
	"encoding/json"
	"sync"
	"time"

	"ipmonitor/internal/types"
)

// Metrics represents monitoring metrics
type Metrics struct {
	mu            sync.RWMutex
	StartTime     time.Time                  `json:"start_time"`
	LastCheckTime time.Time                  `json:"last_check_time"`
	CheckCount    int64                      `json:"check_count"`
	ErrorCount    int64                      `json:"error_count"`
	LastError     string                     `json:"last_error"`
	IPChanges     *IPChangeMetrics           `json:"ip_changes"`
	Sources       map[string]*ProviderStats  `json:"sources"`
	DNS           *OutcomeMetrics            `json:"dns"`
	Notifications map[string]*OutcomeMetrics `json:"notifications"`
	StateSaves    *OutcomeMetrics            `json:"state_saves"`
}

// IPChangeMetrics tracks IP address changes
type IPChangeMetrics struct {
	LastChangeTime time.Time `json:"last_change_time"`
	FirstRuns      int64     `json:"first_runs"`
	TotalChanges   int64     `json:"total_changes"`
	Unchanged      int64     `json:"unchanged"`
	ChangesPerDay  float64   `json:"changes_per_day"`
}

// ProviderStats represents statistics for a single IP source
type ProviderStats struct {
	Requests            int64         `json:"requests"`
	Successes           int64         `json:"successes"`
	Failures            int64         `json:"failures"`
	LastResponseTime    time.Duration `json:"last_response_time"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	LastSuccess         time.Time     `json:"last_success"`
	LastError           string        `json:"last_error"`
}

// OutcomeMetrics counts successes and failures of a side effect
type OutcomeMetrics struct {
	Successes   int64     `json:"successes"`
	Failures    int64     `json:"failures"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error"`
}

func (o *OutcomeMetrics) record(err error) {
	if err != nil {
		o.Failures++
		o.LastError = err.Error()
		return
	}
	o.Successes++
	o.LastSuccess = time.Now()
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:     time.Now(),
		IPChanges:     &IPChangeMetrics{},
		Sources:       make(map[string]*ProviderStats),
		DNS:           &OutcomeMetrics{},
		Notifications: make(map[string]*OutcomeMetrics),
		StateSaves:    &OutcomeMetrics{},
	}
}

// RecordCheck records a cycle
func (m *Metrics) RecordCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CheckCount++
	m.LastCheckTime = time.Now()
}

// RecordError records a cycle error
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ErrorCount++
	m.LastError = err.Error()
}

// RecordSourceRequest records the outcome of one IP source request
func (m *Metrics) RecordSourceRequest(name string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.Sources[name]
	if stats == nil {
		stats = &ProviderStats{}
		m.Sources[name] = stats
	}

	stats.Requests++
	stats.LastResponseTime = duration

	if err != nil {
		stats.Failures++
		stats.LastError = err.Error()
	} else {
		stats.Successes++
		stats.LastSuccess = time.Now()
	}

	// Update average response time
	totalTime := stats.AverageResponseTime.Nanoseconds() * (stats.Requests - 1)
	totalTime += duration.Nanoseconds()
	stats.AverageResponseTime = time.Duration(totalTime / stats.Requests)
}

// RecordChange records a classified cycle result
func (m *Metrics) RecordChange(kind types.ChangeKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch kind {
	case types.Unchanged:
		m.IPChanges.Unchanged++
		return
	case types.FirstRun:
		m.IPChanges.FirstRuns++
	case types.Changed:
		m.IPChanges.TotalChanges++
	}
	m.IPChanges.LastChangeTime = time.Now()

	// Calculate changes per day
	days := time.Since(m.StartTime).Hours() / 24
	if days > 0 {
		m.IPChanges.ChangesPerDay = float64(m.IPChanges.TotalChanges) / days
	}
}

// RecordDNSUpdate records a DNS update outcome
func (m *Metrics) RecordDNSUpdate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DNS.record(err)
}

// RecordNotification records a notification outcome for a channel
func (m *Metrics) RecordNotification(channel string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.Notifications[channel]
	if o == nil {
		o = &OutcomeMetrics{}
		m.Notifications[channel] = o
	}
	o.record(err)
}

// RecordStateSave records a state persistence outcome
func (m *Metrics) RecordStateSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StateSaves.record(err)
}

// GetSnapshot returns a copy of current metrics
func (m *Metrics) GetSnapshot() (*Metrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	var snapshot Metrics
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
