package types

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// PersistedState represents the last observed public IP
type PersistedState struct {
	IP         netip.Addr `json:"ip"`
	ObservedAt time.Time  `json:"timestamp"`
}

// persistedStateJSON is the on-disk shape of PersistedState
type persistedStateJSON struct {
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp,omitempty"`
}

// timestampLayouts are accepted when decoding a state record.
// The naive layouts cover files written without a zone offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// MarshalJSON implements json.Marshaler
func (s PersistedState) MarshalJSON() ([]byte, error) {
	out := persistedStateJSON{IP: s.IP.String()}
	if !s.ObservedAt.IsZero() {
		out.Timestamp = s.ObservedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. An unparseable timestamp is
// dropped, an invalid IP is an error.
func (s *PersistedState) UnmarshalJSON(data []byte) error {
	var in persistedStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	ip, err := ParseIP(in.IP, IPVersionAny)
	if err != nil {
		return fmt.Errorf("invalid ip in state: %w", err)
	}

	s.IP = ip
	s.ObservedAt = parseTimestamp(in.Timestamp)
	return nil
}

// Equal reports whether two states carry the same address
func (s *PersistedState) Equal(other *PersistedState) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.IP == other.IP
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
