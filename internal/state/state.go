package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ipmonitor/internal/types"
)

// ErrCorrupt marks a stored record that cannot be decoded
var ErrCorrupt = errors.New("state record is corrupt")

// Store persists the last observed IP
type Store interface {
	// Load returns nil and no error when nothing has been stored yet
	Load(ctx context.Context) (*types.PersistedState, error)
	// Save replaces the stored record atomically
	Save(ctx context.Context, state types.PersistedState) error
	// Describe names the backing location for logs
	Describe() string
}

func decode(data []byte) (*types.PersistedState, error) {
	var st types.PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &st, nil
}

func encode(st types.PersistedState) ([]byte, error) {
	if !st.IP.IsValid() {
		return nil, fmt.Errorf("refusing to persist invalid ip")
	}
	return json.MarshalIndent(st, "", "  ")
}
