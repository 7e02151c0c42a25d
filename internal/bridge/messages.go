package bridge

import "voice-command-service/internal/ports"

// Message types sent to the browser.
const (
	TypeCaptureStart = "capture.start"
	TypeCaptureStop  = "capture.stop"
	TypeSpeak        = "speak"
	TypeSpeechCancel = "speech.cancel"
	TypeNavigate     = "navigate"
	TypeState        = "state"
)

// Message types received from the browser.
const (
	TypeCaptureStarted = "capture.started"
	TypeCaptureInterim = "capture.interim"
	TypeCaptureFinal   = "capture.final"
	TypeCaptureError   = "capture.error"
	TypeCaptureEnded   = "capture.ended"
	TypeVoices         = "voices"
	TypeSpeechEnded    = "speech.ended"
	TypeSessionStart   = "session.start"
	TypeSessionStop    = "session.stop"
)

// Message is the JSON envelope exchanged over the bridge websocket.
type Message struct {
	Type string `json:"type"`

	// capture.interim, capture.final, speak
	Text string `json:"text,omitempty"`

	// capture.error carries the browser error code, e.g. "no-speech".
	Code string `json:"code,omitempty"`

	// navigate
	Route string `json:"route,omitempty"`

	// speak
	Voice  *ports.Voice `json:"voice,omitempty"`
	Pitch  float64      `json:"pitch,omitempty"`
	Rate   float64      `json:"rate,omitempty"`
	Volume float64      `json:"volume,omitempty"`

	// voices
	Voices []ports.Voice `json:"voices,omitempty"`

	// state
	State any `json:"state,omitempty"`
}
