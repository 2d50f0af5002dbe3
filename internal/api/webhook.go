package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/security"
)

// deleteTypes are the content-management notification types that remove a
// document from the corpus.
var deleteTypes = map[string]struct{}{
	"content-unpublished":           {},
	"content-deleted":               {},
	"media-deleted":                 {},
	"content-moving-to-recycle-bin": {},
	"content-moved-to-recycle-bin":  {},
	"media-moving-to-recycle-bin":   {},
	"media-moved-to-recycle-bin":    {},
}

// webhookRequest is the content-change notification payload. Content types
// carry their URL under urls["en-us"]; media types carry mediaUrl.
type webhookRequest struct {
	Type     string            `json:"type"`
	URLs     map[string]string `json:"urls"`
	MediaURL string            `json:"mediaUrl"`
}

// TaskPublisher is the slice of the queue the webhook handler needs.
type TaskPublisher interface {
	Publish(ctx context.Context, task ingest.Task) error
}

type webhookHandler struct {
	pub    TaskPublisher
	allow  *security.AllowList
	logger *slog.Logger
}

// updateEmbedding maps a content-change notification to one ingestion task
// and publishes it. The document itself is fetched later by the worker; this
// handler only validates, authorizes, and enqueues.
func (h *webhookHandler) updateEmbedding(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing JSON payload.", h.logger)
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "Payload is missing the required 'type' field.", h.logger)
		return
	}

	var action ingest.Action
	if _, ok := deleteTypes[req.Type]; ok {
		action = ingest.ActionDelete
	} else if req.Type == "content" || req.Type == "media" {
		action = ingest.ActionUpsert
	} else {
		h.logger.Warn("webhook with unknown type", "type", req.Type)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid or unsupported 'type': '%s'.", req.Type), h.logger)
		return
	}

	var targetURL string
	switch {
	case strings.Contains(req.Type, "content"):
		targetURL = req.URLs["en-us"]
	case strings.Contains(req.Type, "media"):
		targetURL = req.MediaURL
	}
	if targetURL == "" {
		h.logger.Error("webhook payload missing URL fields", "type", req.Type)
		writeError(w, http.StatusBadRequest, "Payload structure is invalid for the given type.", h.logger)
		return
	}

	if h.allow.Empty() {
		h.logger.Error("SECURITY: allowed URL prefixes are not configured, rejecting all webhook requests")
		writeError(w, http.StatusForbidden, "Forbidden: URL validation is not configured on the server.", h.logger)
		return
	}
	if err := h.allow.Check(targetURL); err != nil {
		h.logger.Warn("rejected webhook for unauthorized URL", "action", action, "url", targetURL)
		writeError(w, http.StatusForbidden, "Forbidden: The provided URL domain is not on the list of authorized sources.", h.logger)
		return
	}

	task := ingest.Task{Action: action, URL: targetURL}
	if action == ingest.ActionUpsert {
		task.Type = ingest.ContentType(req.Type)
	}

	if err := h.pub.Publish(r.Context(), task); err != nil {
		h.logger.Error("publishing ingestion task", "action", action, "url", targetURL, "error", err)
		if isBrokerDown(err) {
			writeError(w, http.StatusBadGateway, "Failed to queue update task due to a persistent server error.", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to queue %s task.", action), h.logger)
		return
	}

	h.logger.Info("queued ingestion task", "action", action, "url", targetURL)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": fmt.Sprintf("%s request for %s received and is being processed.", capitalize(string(action)), targetURL),
	}, h.logger)
}

// isBrokerDown reports whether a publish failure means the queue itself is
// unreachable, as opposed to a transient or payload-level error.
func isBrokerDown(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
