package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ragline/ragline/internal/chat"
)

// conversationRequest is the chat request body. History roles are "user" or
// "model"; each history entry carries its text in parts, oldest first.
type conversationRequest struct {
	Message string `json:"message"`
	History []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"history"`
}

// answerChunk is the default-event payload carrying one text delta. Error is
// set when the text is a fixed user-safe notice rather than a model answer.
type answerChunk struct {
	AnswerChunk string `json:"answer_chunk"`
	Error       bool   `json:"error,omitempty"`
}

type conversationHandler struct {
	orchestrator *chat.Orchestrator
	logger       *slog.Logger
}

// converse streams the orchestrator's event sequence over SSE. Validation
// failures are reported as JSON before the stream starts; once streaming has
// begun the connection always ends with a done event.
func (h *conversationHandler) converse(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", h.logger)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required.", h.logger)
		return
	}

	history := make([]chat.Turn, 0, len(req.History))
	for _, entry := range req.History {
		text := ""
		if len(entry.Parts) > 0 {
			text = entry.Parts[0].Text
		}
		history = append(history, chat.Turn{Role: entry.Role, Text: text})
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Streaming is not supported.", h.logger)
		return
	}

	events := h.orchestrator.Stream(r.Context(), req.Message, history)
	writeFailed := false
	for ev := range events {
		if writeFailed {
			// Client gone; keep draining so the orchestrator goroutine
			// finishes.
			continue
		}
		if err := h.writeEvent(sse, ev); err != nil {
			h.logger.Debug("client disconnected mid-stream", "error", err)
			writeFailed = true
		}
	}
}

func (h *conversationHandler) writeEvent(sse *sseWriter, ev chat.Event) error {
	switch ev.Kind {
	case chat.KindText:
		return sse.WriteMessage(answerChunk{AnswerChunk: ev.Text, Error: ev.Error})
	case chat.KindSources:
		return sse.WriteEvent("sources", map[string]any{"source_urls": ev.Sources})
	case chat.KindContactInfo:
		return sse.WriteEvent("contact_info", ev.Contacts)
	case chat.KindFollowUp:
		return sse.WriteEvent("follow_up", map[string]any{"follow_up_questions": ev.FollowUps})
	case chat.KindDone:
		return sse.WriteEvent("done", map[string]any{})
	default:
		h.logger.Warn("unknown event kind", "kind", ev.Kind)
		return nil
	}
}
