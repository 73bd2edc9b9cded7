// Package errs wraps the cockroachdb/errors primitives the codebase relies
// on so call sites stay short and the underlying library can be swapped in
// one place.
package errs

import (
	cr "github.com/cockroachdb/errors"
)

// New creates a new error with a stack trace.
func New(msg string) error {
	return cr.New(msg)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

// Wrap annotates err with msg, keeping the original cause and stack.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

// Mark attaches reference errors to err so errors.Is matches them without
// changing the message.
func Mark(err error, marks ...error) error {
	if err == nil {
		return nil
	}
	for _, m := range marks {
		err = cr.Mark(err, m)
	}
	return err
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return cr.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return cr.As(err, target)
}
