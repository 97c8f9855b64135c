package types

import "time"

// ChangeRecord is a row of the change history
type ChangeRecord struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	PreviousIP string    `json:"previous_ip,omitempty"`
	CurrentIP  string    `json:"current_ip"`
	DNSUpdated bool      `json:"dns_updated"`
	DNSError   string    `json:"dns_error,omitempty"`
	Notified   bool      `json:"notified"`
	ObservedAt time.Time `json:"observed_at"`
}

// ChangeFilter represents filtering options for history queries
type ChangeFilter struct {
	Since time.Time `json:"since"`
	Limit int       `json:"limit,omitempty"`
}

// DefaultChangeLimit caps history queries without an explicit limit
const DefaultChangeLimit = 50
