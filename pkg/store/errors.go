package store

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCreatedAt is returned when a record has no creation timestamp.
	ErrMissingCreatedAt = errors.New("record is missing created_at")

	// ErrInvalidLatency is returned when a record has a negative or NaN latency.
	ErrInvalidLatency = errors.New("record latency must be a non-negative number")

	// ErrNotStarted is returned when the store is used before Start.
	ErrNotStarted = errors.New("store not started")
)

// StorageError wraps any failure of the datastore with the operation that
// triggered it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
