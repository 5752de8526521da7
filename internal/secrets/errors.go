package secrets

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyPublished is returned when a container already holds a version
	// and overwrite was not requested.
	ErrAlreadyPublished = errors.New("token already published")
	// ErrGrantDenied is returned when the caller may not change a container's readers.
	ErrGrantDenied = errors.New("grant denied")
	// ErrNotFound is returned when a container or its latest version does not exist.
	ErrNotFound = errors.New("secret not found")
	// ErrAccessDenied is returned when an identity may not read a container.
	ErrAccessDenied = errors.New("access denied")
)

// Error describes a failed secret store operation.
type Error struct {
	Container string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("secret %s: %s: %v", e.Container, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(container, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Container: container, Op: op, Err: err}
}
