package core

import (
	"errors"
	"fmt"
)

// Exit codes returned by the probe binary.
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitConfigError  = 2
	ExitTestFailures = 3
)

// ErrorKind classifies a pipeline failure. Each kind is reported with its
// own prefix so the failing stage is obvious from the console.
type ErrorKind int

const (
	KindDocumentUnavailable ErrorKind = iota
	KindDocumentMalformed
	KindMutationSkipped
	KindRunnerInvocationFailed
	KindReportUnavailable
	KindTokenExtractionFailed
	KindConfigInvalid
	KindTestsFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindDocumentUnavailable:
		return "DocumentUnavailable"
	case KindDocumentMalformed:
		return "DocumentMalformed"
	case KindMutationSkipped:
		return "MutationSkipped"
	case KindRunnerInvocationFailed:
		return "RunnerInvocationFailed"
	case KindReportUnavailable:
		return "ReportUnavailable"
	case KindTokenExtractionFailed:
		return "TokenExtractionFailed"
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindTestsFailed:
		return "TestsFailed"
	default:
		return "Unknown"
	}
}

// ProbeError is the error type returned by the pipeline.
type ProbeError struct {
	Kind    ErrorKind
	Message string
	// Detail carries captured runner output, printed below the message.
	Detail string
	Cause  error
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error.
func (e *ProbeError) ExitCode() int {
	switch e.Kind {
	case KindMutationSkipped:
		return ExitSuccess
	case KindConfigInvalid:
		return ExitConfigError
	case KindTestsFailed:
		return ExitTestFailures
	default:
		return ExitRuntimeError
	}
}

func newError(kind ErrorKind, cause error, format string, args ...any) *ProbeError {
	return &ProbeError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func configError(message string) *ProbeError {
	return &ProbeError{Kind: KindConfigInvalid, Message: message}
}

// KindOf returns the kind of a ProbeError anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// GetExitCode returns the exit code for err.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.ExitCode()
	}
	return ExitRuntimeError
}
