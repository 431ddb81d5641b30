package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired     = sterrors.New("faultline: configuration is required")
	ErrLoggerRequired     = sterrors.New("faultline: logger is required")
	ErrTransportRequired  = sterrors.New("faultline: transport is required")
	ErrEventRequired      = sterrors.New("faultline: event is required")
	ErrInvalidSeverity    = sterrors.New("faultline: invalid severity")
	ErrInvalidSampleRate  = sterrors.New("faultline: sample rate must be within [0, 1]")
	ErrStackExecuting     = sterrors.New("faultline: middleware stack is executing")
	ErrInvalidStageResult = sterrors.New("faultline: middleware returned an invalid event")
	ErrNextCalledTwice    = sterrors.New("faultline: middleware called next more than once")
	ErrStageRequired      = sterrors.New("faultline: middleware stage is required")
	ErrStageNameRequired  = sterrors.New("faultline: middleware name is required")
	ErrUnknownTransport   = sterrors.New("faultline: unknown transport")
	ErrClientClosed       = sterrors.New("faultline: client is closed")
)

// ConfigValidationError reports an invalid configuration.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "faultline: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// StageError identifies the middleware that aborted a capture.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("faultline: middleware %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
