// Package fault defines the error taxonomy shared by the voice pipeline:
// configuration faults, upstream provider faults, validation faults, and
// streaming protocol faults. Callers classify errors with errors.As/Is.
package fault

import "fmt"

// ConfigError reports a required provider credential that is absent.
// It is never retried and surfaces as a server-side failure.
type ConfigError struct {
	Provider   string
	Credential string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %s: credential %s is not configured", e.Provider, e.Credential)
}

// NewConfigError builds a ConfigError for a provider/credential pair.
func NewConfigError(provider, credential string) *ConfigError {
	return &ConfigError{Provider: provider, Credential: credential}
}

// UpstreamError reports a non-success response or timeout from an external
// provider. Timeout is a subtype flag rather than a separate type so a single
// errors.As covers both.
type UpstreamError struct {
	Provider string
	Status   int
	Detail   string
	Timeout  bool
	Cause    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("provider %s: timed out: %s", e.Provider, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("provider %s: upstream status %d: %s", e.Provider, e.Status, e.Detail)
	default:
		return fmt.Sprintf("provider %s: upstream failure: %s", e.Provider, e.Detail)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// ValidationError reports a malformed identifier, an entity that is not
// found or not owned by the caller, or an empty transcript. No further stage
// executes beyond the failing check.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrEmptyTranscript aborts the pipeline when transcription yields no speech.
var ErrEmptyTranscript = &ValidationError{Reason: "transcript is empty"}

// ProtocolError reports a malformed or unexpected streaming message, or a
// failed authentication handshake. Terminal errors close the connection;
// non-terminal ones are reported in-band and the session continues.
type ProtocolError struct {
	Reason   string
	Terminal bool
}

func (e *ProtocolError) Error() string {
	return e.Reason
}

// NewProtocolError builds a non-terminal ProtocolError.
func NewProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// NewTerminalProtocolError builds a ProtocolError that ends the connection.
func NewTerminalProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...), Terminal: true}
}

// StageError aggregates a pipeline stage failure, naming the failing stage
// and carrying its cause. Remaining stages are aborted when one is raised.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
