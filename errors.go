package settings

import (
	"errors"
	"fmt"
)

// Errors returned by store operations.
var (
	// ErrReadOnly indicates a set targeted an existing key under a
	// read-only store. Creating new keys is still allowed.
	ErrReadOnly = errors.New("store is read-only")

	// ErrWatchedFileMissing indicates the watched file was moved or
	// deleted while the watch was armed. Delivered on the Errors
	// channel, never from Get/Set.
	ErrWatchedFileMissing = errors.New("watched file missing")

	// ErrNoDocument indicates no file path and no custom backing
	// document were configured.
	ErrNoDocument = errors.New("no document path or backing document configured")

	// ErrNotMapping indicates a dotted path traverses a segment whose
	// value is a scalar rather than a nested mapping.
	ErrNotMapping = errors.New("path segment is not a nested mapping")

	// ErrSettingNotFound indicates a typed accessor was used on an
	// unset path.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrTypeMismatch indicates the stored value type does not match
	// the type requested by an accessor.
	ErrTypeMismatch = errors.New("type mismatch")
)

// TypeError is returned when a typed accessor finds a value of the
// wrong type.
type TypeError struct {
	// Path is the dotted path.
	Path string
	// Expected is the expected type name.
	Expected string
	// Actual is the actual type name.
	Actual string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Is implements error matching for TypeError.
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}
