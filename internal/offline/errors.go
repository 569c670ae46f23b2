package offline

import "errors"

var (
	// ErrStorageUnavailable means the local store could not be opened or
	// written. Callers must surface it: the record was not persisted.
	ErrStorageUnavailable = errors.New("offline storage unavailable")

	// ErrNotFound is returned by single-record lookups.
	ErrNotFound = errors.New("offline record not found")
)

// StorageError wraps a failure of the local store with the operation that hit it.
// It matches ErrStorageUnavailable under errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "offline storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
