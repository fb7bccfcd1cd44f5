package domain

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by every repository implementation. A lookup that
// finds nothing is not an error; it returns a nil entity.
var (
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDataIntegrity      = errors.New("data integrity violation")
)

// StorageError carries the operation context of a repository failure.
type StorageError struct {
	Kind   error
	Op     string
	Entity string
	Key    string
	Err    error
}

// NewStorageError builds a StorageError of the given kind.
func NewStorageError(kind error, op, entity, key string, cause error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Entity: entity, Key: key, Err: cause}
}

func (e *StorageError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Entity)
	if e.Key != "" {
		msg += fmt.Sprintf(" [%s]", e.Key)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the backend cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind so callers can use errors.Is(err, ErrDuplicateKey).
func (e *StorageError) Is(target error) bool {
	return target == e.Kind
}

// IsDuplicateKey reports whether err is a uniqueness violation on write.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsStorageUnavailable reports whether err is a connection or transport failure.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsDataIntegrity reports whether err signals corrupted stored data.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}
