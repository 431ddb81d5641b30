package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrConfigRequired", ErrConfigRequired, "faultline: configuration is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "faultline: logger is required"},
		{"ErrTransportRequired", ErrTransportRequired, "faultline: transport is required"},
		{"ErrEventRequired", ErrEventRequired, "faultline: event is required"},
		{"ErrInvalidSeverity", ErrInvalidSeverity, "faultline: invalid severity"},
		{"ErrInvalidSampleRate", ErrInvalidSampleRate, "faultline: sample rate must be within [0, 1]"},
		{"ErrStackExecuting", ErrStackExecuting, "faultline: middleware stack is executing"},
		{"ErrInvalidStageResult", ErrInvalidStageResult, "faultline: middleware returned an invalid event"},
		{"ErrNextCalledTwice", ErrNextCalledTwice, "faultline: middleware called next more than once"},
		{"ErrUnknownTransport", ErrUnknownTransport, "faultline: unknown transport"},
		{"ErrClientClosed", ErrClientClosed, "faultline: client is closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	want := "faultline: invalid configuration: invalid port"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		err := NewConfigValidationError(inner)

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if !errors.Is(err, inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}

func TestStageError(t *testing.T) {
	inner := errors.New("boom")
	var err error = &StageError{Stage: "request", Err: inner}

	if got, want := err.Error(), `faultline: middleware "request" failed: boom`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("expected StageError to unwrap to the stage failure")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "request" {
		t.Fatalf("expected errors.As to expose the stage name, got %#v", stageErr)
	}
}
