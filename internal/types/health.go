package types

import (
	"time"
)

// HealthStatus represents the overall service health
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	StartTime time.Time         `json:"start_time"`
	Uptime    string            `json:"uptime"`
	Details   []ComponentStatus `json:"details,omitempty"`
}

// ComponentStatus represents individual component status
type ComponentStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// MonitorStatus is a point-in-time view of the scheduler
type MonitorStatus struct {
	State         *PersistedState `json:"state,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	LastCycleAt   time.Time       `json:"last_cycle_at,omitempty"`
	LastKind      string          `json:"last_kind,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Cycles        int64           `json:"cycles"`
	TestMode      bool            `json:"test_mode"`
	Records       []string        `json:"records"`
	CheckInterval string          `json:"check_interval"`
}
