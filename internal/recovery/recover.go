// Package recovery converts panics in engine and user callbacks into errors.
// Keeps a misbehaving engine or dynamic column from taking down a pipeline or the Flight service.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrPanic wraps every recovered panic.
var ErrPanic = errors.New("panic recovered")

// RecoverToError wraps a function call with panic recovery.
// If the function panics, the panic is logged with its stack and returned as ErrPanic.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "Emit", func() error {
//	    return emit(res, selected)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
			err = fmt.Errorf("%w: %s: %v", ErrPanic, operation, r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns zero value and ErrPanic.
//
// Example:
//
//	sel, err := recovery.RecoverToValue(logger, "Evaluate", func() (*native.SelectionVector, error) {
//	    return eng.Evaluate(f, rec)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
			var zero T
			result = zero
			err = fmt.Errorf("%w: %s: %v", ErrPanic, operation, r)
		}
	}()

	return fn()
}

func logPanic(logger *slog.Logger, operation string, r any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Panic recovered",
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
}
