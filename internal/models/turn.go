// Package models defines the data structures for recognition turn events.
package models

// Event types carried in the eventType field and Kafka header.
const (
	EventTypeRecognized = "voice.command.recognized"
	EventTypeDispatched = "voice.command.dispatched"
)

// RecognitionEvent is emitted once per final transcript, whether or not a
// command matched.
type RecognitionEvent struct {
	EventType  string  `json:"eventType"`
	TurnID     string  `json:"turnId"`
	Principal  string  `json:"principal"`
	Timestamp  int64   `json:"timestamp"`
	Transcript string  `json:"transcript"`
	MatchType  string  `json:"matchType"`
	Score      float64 `json:"score"`
	Command    string  `json:"command,omitempty"`
	Pattern    string  `json:"pattern,omitempty"`
}

// DispatchEvent is emitted once per invoked command action.
type DispatchEvent struct {
	EventType string `json:"eventType"`
	TurnID    string `json:"turnId"`
	Principal string `json:"principal"`
	Timestamp int64  `json:"timestamp"`
	Command   string `json:"command"`
	Category  string `json:"category"`
	Route     string `json:"route,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}
