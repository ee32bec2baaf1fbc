package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a short machine-readable classification of a failure.
type ErrorKind string

const (
	KindUnknown       ErrorKind = "unknown"
	KindConfiguration ErrorKind = "configuration"
	KindRemote        ErrorKind = "remote"
	KindDecode        ErrorKind = "decode"
)

// ErrConfiguration is wrapped by every construction-time configuration failure.
var ErrConfiguration = errors.New("configuration error")

// RemoteError is returned when the speech provider answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	StatusText string
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("elevenlabs API error: %s", e.StatusText)
}

// DecodeError is returned when an audio payload cannot be decoded into PCM.
// Index is the position of the offending buffer in a batch, or -1 for a single payload.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("failed to decode audio: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode audio buffer %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps a message with ErrConfiguration.
func NewConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Kind classifies err by walking its wrap chain.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrConfiguration) {
		return KindConfiguration
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return KindRemote
	}
	var decode *DecodeError
	if errors.As(err, &decode) {
		return KindDecode
	}
	return KindUnknown
}
