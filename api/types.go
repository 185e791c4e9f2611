package api

import "github.com/supportflow/supportflow/types"

// AskRequest is the payload for POST /v1/ask and /v1/ask/stream, and
// the first frame on the WebSocket surface.
type AskRequest struct {
	Question string `json:"question"`

	// SessionID groups turns into a conversation. Empty runs the
	// question without history.
	SessionID string `json:"session_id,omitempty"`
}

// AskResponse is the terminal answer payload.
type AskResponse struct {
	RunID         string                   `json:"run_id"`
	Answer        string                   `json:"answer"`
	Sources       []types.SourceDescriptor `json:"sources"`
	UsedWebSearch bool                     `json:"used_web_search"`
	Iterations    int                      `json:"iterations"`
	SessionID     string                   `json:"session_id,omitempty"`
}

// Stream event types carried in StreamEvent.Type.
const (
	StreamEventStatus = "status"
	StreamEventDelta  = "delta"
	StreamEventDone   = "done"
	StreamEventError  = "error"
)

// StreamEvent is one frame of a streaming answer. Status frames mark
// retrieval progress, delta frames carry answer text, and exactly one
// done (or error) frame ends the stream.
type StreamEvent struct {
	Type    string                   `json:"type"`
	Stage   string                   `json:"stage,omitempty"`
	Delta   string                   `json:"delta,omitempty"`
	Answer  string                   `json:"answer,omitempty"`
	Sources []types.SourceDescriptor `json:"sources,omitempty"`
	Error   *StreamError             `json:"error,omitempty"`
}

// StreamError is the in-band error payload of a failed stream.
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
