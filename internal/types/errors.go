package types

import "errors"

var (
	ErrNoSources       = errors.New("no ip sources configured")
	ErrInvalidDriver   = errors.New("invalid database driver")
	ErrHistoryDisabled = errors.New("history is not enabled")
)
