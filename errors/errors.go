// Package errors provides classified error handling for sensorwire components.
// Errors carry a class that maps onto the module's error taxonomy: transient
// errors are adapter-recoverable, invalid errors mark malformed wire data that
// is skipped, and fatal errors terminate the owning adapter instance only.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to malformed wire data or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that stop the owning adapter
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Adapter lifecycle errors
	ErrAlreadyStarted = errors.New("adapter already started")
	ErrNotStarted     = errors.New("adapter not started")
	ErrShuttingDown   = errors.New("adapter is shutting down")
	ErrStopTimeout    = errors.New("stop timeout exceeded")

	// Connection errors
	ErrConnectionLost = errors.New("connection lost")
	ErrBindFailed     = errors.New("listener bind failed")

	// Wire decode errors
	ErrFrameTooLarge     = errors.New("frame length exceeds maximum")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownSensorType = errors.New("unknown sensor type")

	// Dispatch errors
	ErrQueueFull = errors.New("handler queue full")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ClassifiedError wraps an error with its classification and the component
// context it arose in.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and safe to retry
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}
	return errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrQueueFull)
}

// IsInvalid checks if an error marks malformed input that should be skipped
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}
	return errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrMalformedEnvelope) ||
		errors.Is(err, ErrUnknownSensorType)
}

// IsFatal checks if an error should stop the owning adapter
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}
	return errors.Is(err, ErrBindFailed) || errors.Is(err, ErrInvalidConfig)
}

// Classify returns the error class for an error. Unknown errors default to
// transient so callers err on the side of continuing.
func Classify(err error) ErrorClass {
	switch {
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func newClassified(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{
		Class:     class,
		Err:       Wrap(err, component, method, action),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return newClassified(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return newClassified(ErrorInvalid, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return newClassified(ErrorFatal, err, component, method, action)
}
