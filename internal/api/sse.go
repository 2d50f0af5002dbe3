package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// errNoFlusher indicates the ResponseWriter cannot stream.
var errNoFlusher = errors.New("response writer does not support flusher interface")

// sseWriter wraps an http.ResponseWriter for Server-Sent Events streaming.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter creates an SSE writer and sets the streaming headers.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errNoFlusher
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteMessage sends payload as a default (unnamed) event: bare data lines.
func (s *sseWriter) WriteMessage(payload any) error {
	return s.write("", payload)
}

// WriteEvent sends payload as a named event block.
func (s *sseWriter) WriteEvent(event string, payload any) error {
	return s.write(event, payload)
}

// write emits one SSE block and flushes. Multi-line data is prefixed per the
// SSE wire format, though JSON payloads are single-line in practice.
func (s *sseWriter) write(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}

	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			return fmt.Errorf("writing event name: %w", err)
		}
	}
	for _, line := range strings.Split(string(data), "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("writing terminator: %w", err)
	}

	s.flusher.Flush()
	return nil
}
