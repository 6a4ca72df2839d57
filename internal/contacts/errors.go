package contacts

import (
	"errors"
	"fmt"
)

// MalformedSourceError indicates a tabular source that cannot be used as a
// contact collection, typically because a required column is missing.
type MalformedSourceError struct {
	Source string
	Column string
	Err    error
}

func (e *MalformedSourceError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("malformed source %s: missing required column %q", e.Source, e.Column)
	}
	return fmt.Sprintf("malformed source %s: %v", e.Source, e.Err)
}

func (e *MalformedSourceError) Unwrap() error {
	return e.Err
}

// PersistenceError indicates a failed write of a contact collection.
// Callers must not advance in-memory state past a PersistenceError.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsMalformedSource reports whether err (or any error in its chain) is a MalformedSourceError.
func IsMalformedSource(err error) bool {
	var me *MalformedSourceError
	return errors.As(err, &me)
}

// IsPersistence reports whether err (or any error in its chain) is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
