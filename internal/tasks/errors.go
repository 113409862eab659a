package tasks

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("todo item not found")
	ErrDescriptionRequired = errors.New("description required")
	ErrDuplicateID         = errors.New("duplicate todo item id")
	ErrLineBreak           = errors.New("description contains a line break")
)

// StorageError reports a failed repository operation. The driver or I/O
// error is kept as-is and is reachable through errors.Is / errors.As.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Backend: backend, Op: op, Err: err}
}

// MalformedRecordError describes a stored line that could not be parsed.
type MalformedRecordError struct {
	Line int
	Text string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
