package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/supportflow/supportflow/api"
	"github.com/supportflow/supportflow/types"
	"github.com/supportflow/supportflow/workflow"
)

// AskService answers support questions, optionally carrying per-session
// conversation context.
type AskService interface {
	Ask(ctx context.Context, question, sessionID string) (*workflow.Result, error)
	AskStream(ctx context.Context, question, sessionID string) (<-chan workflow.StreamEvent, error)
}

// AskHandler serves the question answering endpoints.
type AskHandler struct {
	svc    AskService
	logger *zap.Logger
}

// NewAskHandler creates the handler.
func NewAskHandler(svc AskService, logger *zap.Logger) *AskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AskHandler{
		svc:    svc,
		logger: logger.With(zap.String("component", "ask_handler")),
	}
}

func validateAskRequest(req *api.AskRequest) *types.Error {
	if strings.TrimSpace(req.Question) == "" {
		return types.NewError(types.ErrInvalidRequest, "question is required")
	}
	return nil
}

// HandleAsk answers a question synchronously.
// POST /v1/ask
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateAskRequest(&req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.svc.Ask(r.Context(), req.Question, req.SessionID)
	if err != nil {
		WriteError(w, r, asAPIError(err), h.logger)
		return
	}

	WriteSuccess(w, r, api.AskResponse{
		RunID:         result.RunID,
		Answer:        result.Answer,
		Sources:       result.Sources,
		UsedWebSearch: result.UsedWebSearch,
		Iterations:    result.Iterations,
		SessionID:     req.SessionID,
	})
}

// HandleAskStream answers a question as a server-sent event stream.
// POST /v1/ask/stream
func (h *AskHandler) HandleAskStream(w http.ResponseWriter, r *http.Request) {
	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateAskRequest(&req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, types.NewError(types.ErrInternalError, "streaming not supported"), h.logger)
		return
	}

	events, err := h.svc.AskStream(r.Context(), req.Question, req.SessionID)
	if err != nil {
		WriteError(w, r, asAPIError(err), h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	for ev := range events {
		frame := toStreamFrame(ev)
		payload, err := json.Marshal(frame)
		if err != nil {
			h.logger.Error("encode stream frame", zap.Error(err))
			return
		}
		if frame.Type == api.StreamEventError {
			_, _ = w.Write([]byte("event: error\n"))
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// HandleAskWS answers questions over a WebSocket. The client sends one
// AskRequest frame and receives StreamEvent frames until done or error,
// after which the connection closes.
// GET /v1/ask/ws
func (h *AskHandler) HandleAskWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	ctx := r.Context()

	var req api.AskRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, "invalid request frame")
		return
	}
	if verr := validateAskRequest(&req); verr != nil {
		_ = wsjson.Write(ctx, conn, api.StreamEvent{
			Type:  api.StreamEventError,
			Error: &api.StreamError{Code: string(verr.Code), Message: verr.Message},
		})
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}

	events, err := h.svc.AskStream(ctx, req.Question, req.SessionID)
	if err != nil {
		apiErr := asAPIError(err)
		_ = wsjson.Write(ctx, conn, api.StreamEvent{
			Type:  api.StreamEventError,
			Error: &api.StreamError{Code: string(apiErr.Code), Message: apiErr.Message},
		})
		conn.Close(websocket.StatusInternalError, "run failed")
		return
	}

	for ev := range events {
		if err := wsjson.Write(ctx, conn, toStreamFrame(ev)); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

// toStreamFrame converts an engine event into its wire shape.
func toStreamFrame(ev workflow.StreamEvent) api.StreamEvent {
	frame := api.StreamEvent{
		Stage:   ev.Stage,
		Delta:   ev.Delta,
		Answer:  ev.Answer,
		Sources: ev.Sources,
	}
	switch ev.Type {
	case workflow.EventStatus:
		frame.Type = api.StreamEventStatus
	case workflow.EventDelta:
		frame.Type = api.StreamEventDelta
	case workflow.EventDone:
		frame.Type = api.StreamEventDone
	case workflow.EventError:
		frame.Type = api.StreamEventError
		apiErr := asAPIError(ev.Err)
		frame.Error = &api.StreamError{
			Code:    string(apiErr.Code),
			Message: apiErr.Message,
		}
	}
	return frame
}
