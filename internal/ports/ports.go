// Package ports defines the host-side services the voice command engine consumes.
package ports

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies capture failures. All kinds are recoverable.
type ErrorKind int

const (
	// ErrorNone - no error.
	ErrorNone ErrorKind = iota
	// ErrorNoSpeechDetected - capture ended without hearing speech.
	ErrorNoSpeechDetected
	// ErrorCaptureDeviceDenied - no usable microphone.
	ErrorCaptureDeviceDenied
	// ErrorPermissionDenied - the user or platform refused microphone access.
	ErrorPermissionDenied
	// ErrorUnknown - anything else, including internal faults.
	ErrorUnknown
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "NONE"
	case ErrorNoSpeechDetected:
		return "NO_SPEECH_DETECTED"
	case ErrorCaptureDeviceDenied:
		return "CAPTURE_DEVICE_DENIED"
	case ErrorPermissionDenied:
		return "PERMISSION_DENIED"
	case ErrorUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", k)
	}
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for _, candidate := range []ErrorKind{ErrorNone, ErrorNoSpeechDetected, ErrorCaptureDeviceDenied, ErrorPermissionDenied, ErrorUnknown} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// CaptureError is returned by capture services that can classify a failure.
type CaptureError struct {
	Kind ErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return "capture failed: " + e.Kind.String()
	}
	return fmt.Sprintf("capture failed (%s): %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Errors that are not a CaptureError are ErrorUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrorUnknown
}

// ParseErrorKind maps a platform capture error code to an ErrorKind.
// Codes follow the browser speech recognition error names.
func ParseErrorKind(code string) ErrorKind {
	switch code {
	case "no-speech":
		return ErrorNoSpeechDetected
	case "audio-capture":
		return ErrorCaptureDeviceDenied
	case "not-allowed", "service-not-allowed":
		return ErrorPermissionDenied
	default:
		return ErrorUnknown
	}
}

// CaptureListener receives events from a CaptureService.
type CaptureListener interface {
	// OnStart is called once the platform has started listening.
	OnStart()

	// OnInterimResult is called with a transcript hypothesis that may still change.
	OnInterimResult(text string)

	// OnFinalResult is called with the final transcript for the utterance.
	OnFinalResult(text string)

	// OnError is called when capture fails.
	OnError(kind ErrorKind)

	// OnEnd is called when the platform stops listening.
	OnEnd()
}

// CaptureService is the platform speech capture service.
type CaptureService interface {
	// Start begins a capture session. Events are delivered to the listener
	// registered with SetListener.
	Start(ctx context.Context) error

	// Stop ends the current capture session, if any.
	Stop() error

	// SetListener registers the receiver of capture events.
	SetListener(l CaptureListener)
}

// Voice describes one voice offered by the output service.
type Voice struct {
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// Utterance is a single request to render text to audio.
type Utterance struct {
	Text   string  `json:"text"`
	Voice  Voice   `json:"voice"`
	Pitch  float64 `json:"pitch"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
}

// OutputService is the platform speech output service.
type OutputService interface {
	// ListVoices returns the voices currently available.
	ListVoices() []Voice

	// Speak starts rendering the utterance.
	Speak(u Utterance) error

	// Cancel stops any utterance currently playing.
	Cancel()
}

// NavigationService moves the host application to a route.
type NavigationService interface {
	GoTo(route string) error
}
