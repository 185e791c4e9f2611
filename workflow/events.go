package workflow

import "github.com/supportflow/supportflow/types"

// EventType discriminates streaming events.
type EventType string

const (
	// EventStatus reports a retrieval step starting.
	EventStatus EventType = "status"
	// EventDelta carries an answer text increment from terminal synthesis.
	EventDelta EventType = "delta"
	// EventDone terminates a successful stream with the full payload.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// StreamEvent is one element of a streaming run. Status events are
// emitted before each retrieval step; delta events only during terminal
// synthesis; exactly one done (or error) event closes the stream.
type StreamEvent struct {
	Type EventType `json:"type"`

	// Stage names the step for status events.
	Stage string `json:"stage,omitempty"`

	// Delta is an answer increment for delta events.
	Delta string `json:"delta,omitempty"`

	// Answer and Sources carry the full payload on the done event.
	Answer  string                   `json:"answer,omitempty"`
	Sources []types.SourceDescriptor `json:"sources,omitempty"`

	// Err is set on the error event.
	Err error `json:"-"`
}
