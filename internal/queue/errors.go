package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every error raised by the persistence layer.
	ErrStorage = errors.New("queue storage error")
	// ErrNotFound indicates the requested queue item or dead letter is absent.
	ErrNotFound = errors.New("queue item not found")
	// ErrRetriesDecrease indicates an update tried to lower an item's retry count.
	ErrRetriesDecrease = errors.New("retries may only increase")
)

// StorageError wraps a persistence failure with the operation that raised it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// ErrorKind classifies storage failures for logging.
func (e *StorageError) ErrorKind() string {
	if errors.Is(e.Err, ErrNotFound) {
		return "not_found"
	}
	return "storage"
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
