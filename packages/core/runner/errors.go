package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedRequestForm is returned for requests given only as a URL
	// string. They are never defaulted to GET.
	ErrUnsupportedRequestForm = errors.New("unsupported request form")
	// ErrUnsupportedMethod is returned for methods outside SupportedMethods.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrTransport is returned when the request could not be sent or its
	// response could not be read.
	ErrTransport = errors.New("transport error")
)

// ExecutionError reports why a single request produced no trace entry.
// Runs treat it as a per-request failure and continue.
type ExecutionError struct {
	Request string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("request %q: %v", e.Request, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func IsUnsupportedRequestForm(err error) bool {
	return errors.Is(err, ErrUnsupportedRequestForm)
}

func IsUnsupportedMethod(err error) bool {
	return errors.Is(err, ErrUnsupportedMethod)
}

func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
