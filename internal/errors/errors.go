// Package errors provides structured error types for seamloop operations.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindIO represents I/O errors.
	KindIO ErrorKind = iota
	// KindCommand represents external command execution errors.
	KindCommand
	// KindConfig represents configuration validation errors.
	KindConfig
	// KindDecode represents an unreadable source, zero duration or unknown dimensions.
	KindDecode
	// KindAnalysis represents failures during feature extraction or scoring.
	KindAnalysis
	// KindRenderConfig represents an invalid candidate/render option combination.
	KindRenderConfig
	// KindEncode represents the transcoding engine failing to execute a pipeline.
	KindEncode
	// KindProtocol represents malformed or unknown protocol messages.
	KindProtocol
	// KindCancelled represents cancelled or superseded jobs.
	KindCancelled
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindCommand:
		return "Command error"
	case KindConfig:
		return "Configuration error"
	case KindDecode:
		return "Decode error"
	case KindAnalysis:
		return "Analysis error"
	case KindRenderConfig:
		return "Render configuration error"
	case KindEncode:
		return "Encode error"
	case KindProtocol:
		return "Protocol error"
	case KindCancelled:
		return "Operation cancelled"
	default:
		return "Unknown error"
	}
}

// CommandErrorKind represents the type of command error.
type CommandErrorKind int

const (
	// CommandStart means the command failed to start.
	CommandStart CommandErrorKind = iota
	// CommandWait means waiting for the command failed.
	CommandWait
	// CommandFailed means the command returned non-zero exit status.
	CommandFailed
)

// CommandError represents an error from executing an external command.
type CommandError struct {
	Command    string
	Kind       CommandErrorKind
	ExitCode   int
	Stderr     string
	Underlying error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case CommandStart:
		return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Underlying)
	case CommandWait:
		return fmt.Sprintf("failed to wait for %s: %v", e.Command, e.Underlying)
	case CommandFailed:
		if e.Stderr != "" {
			return fmt.Sprintf("command %s failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("command %s failed with exit code %d", e.Command, e.ExitCode)
	default:
		return fmt.Sprintf("command %s error: %v", e.Command, e.Underlying)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Underlying
}

// CoreError is the main error type for seamloop operations.
type CoreError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target matches this error's kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewCommandError creates a new command execution error.
func NewCommandError(cmd string, kind CommandErrorKind, underlying error) *CoreError {
	cmdErr := &CommandError{
		Command:    cmd,
		Kind:       kind,
		Underlying: underlying,
	}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewCommandStartError creates an error for when a command fails to start.
func NewCommandStartError(cmd string, err error) *CoreError {
	return NewCommandError(cmd, CommandStart, err)
}

// NewCommandFailedError creates an error for when a command returns non-zero exit status.
func NewCommandFailedError(cmd string, exitCode int, stderr string) *CoreError {
	cmdErr := &CommandError{
		Command:  cmd,
		Kind:     CommandFailed,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message}
}

// NewDecodeError creates an error for a source that cannot be demuxed or measured.
func NewDecodeError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindDecode, Message: message, Underlying: underlying}
}

// NewAnalysisError creates a new analysis-related error.
func NewAnalysisError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindAnalysis, Message: message, Underlying: underlying}
}

// NewRenderConfigError creates an error for an invalid render configuration.
// It is always reported before the transcoding engine is invoked.
func NewRenderConfigError(message string) *CoreError {
	return &CoreError{Kind: KindRenderConfig, Message: message}
}

// NewEncodeError creates an error for a failed pipeline execution.
func NewEncodeError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindEncode, Message: message, Underlying: underlying}
}

// NewProtocolError creates an error for a malformed protocol message.
func NewProtocolError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindProtocol, Message: message, Underlying: underlying}
}

// NewCancelledError creates an error for cancelled or superseded jobs.
func NewCancelledError() *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "job was cancelled"}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind == kind
	}
	return false
}

// IsCancelled checks if the error is a cancellation error.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// KindOf returns the kind of the outermost CoreError in the chain.
func KindOf(err error) (ErrorKind, bool) {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind, true
	}
	return 0, false
}

// WrapExecError wraps an exec.ExitError into a CoreError.
func WrapExecError(cmd string, err error, stderr string) *CoreError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewCommandFailedError(cmd, exitErr.ExitCode(), stderr)
	}
	return NewCommandStartError(cmd, err)
}
