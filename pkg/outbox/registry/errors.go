package registry

import (
	"errors"
	"fmt"
)

// permanentError marks a row that fails the same way on every attempt; the
// publisher dead-letters it without retrying.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so IsPermanent reports true for it. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Permanentf is Permanent over fmt.Errorf.
func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
