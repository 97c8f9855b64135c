package database

import "fmt"

// Error represents a database error
type Error struct {
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Original error if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new database error
func NewError(op, message string, err error) error {
	return &Error{Op: op, Message: message, Err: err}
}
