package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/livespec/packages/collection"
	"github.com/abdul-hamid-achik/livespec/packages/core/runner"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// Exit codes for livespec CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitRequestFailure indicates one or more requests failed under --strict,
	// or an inferred schema rejected its own payload under --check
	ExitRequestFailure = 1

	// ExitParseError indicates a collection, environment, HAR or spec could
	// not be decoded, or a spec failed validation
	ExitParseError = 2

	// ExitConfigError indicates a configuration or input file problem
	ExitConfigError = 3

	// ExitNetworkError indicates no request reached a server, or the proxy
	// could not listen
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError pins an error to a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func configError(err error) error  { return withExitCode(ExitConfigError, err) }
func usageError(err error) error   { return withExitCode(ExitUsageError, err) }
func networkError(err error) error { return withExitCode(ExitNetworkError, err) }

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	switch {
	case errors.Is(err, collection.ErrParse), errors.Is(err, trace.ErrParse):
		return ExitParseError
	case errors.Is(err, collection.ErrIO):
		return ExitConfigError
	case errors.Is(err, runner.ErrTransport):
		return ExitNetworkError
	}
	return ExitRequestFailure
}
