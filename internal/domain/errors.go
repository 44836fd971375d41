package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMatch = errors.New("cannot report a match against oneself")
	ErrNotFound     = errors.New("not found")
	ErrInvalidPing  = errors.New("invalid ping")
)

// StorageError wraps a backend failure. It is never retried inside the core.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
