// Package testutil provides hand-written stubs for the system's interface
// boundaries: the completion service, the documents store, and the task
// publisher.
package testutil

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/ragline/ragline/internal/chat"
)

// ErrCompleterDown is the default failure for scripted error paths.
var ErrCompleterDown = errors.New("completion service unavailable")

// Completer is a scriptable chat.Completer that records every invocation.
// The zero value streams nothing and returns empty results.
type Completer struct {
	mu sync.Mutex

	// Scripts.
	StreamChunks []chat.Chunk
	StreamErr    error
	GenerateText string
	GenerateErr  error
	JSONText     string
	JSONErr      error

	// Recorded invocations.
	StreamCalls   []StreamCall
	GenerateCalls []GenerateCall
	JSONCalls     []JSONCall
}

type StreamCall struct {
	Message string
	History []chat.Turn
}

type GenerateCall struct {
	System string
	Text   string
}

type JSONCall struct {
	Parts       []string
	Temperature float32
}

func (c *Completer) GenerateStream(_ context.Context, message string, history []chat.Turn) iter.Seq2[chat.Chunk, error] {
	c.mu.Lock()
	c.StreamCalls = append(c.StreamCalls, StreamCall{Message: message, History: history})
	chunks := c.StreamChunks
	streamErr := c.StreamErr
	c.mu.Unlock()

	return func(yield func(chat.Chunk, error) bool) {
		for _, chunk := range chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(chat.Chunk{}, streamErr)
		}
	}
}

func (c *Completer) Generate(_ context.Context, system, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GenerateCalls = append(c.GenerateCalls, GenerateCall{System: system, Text: text})
	return c.GenerateText, c.GenerateErr
}

func (c *Completer) GenerateJSON(_ context.Context, parts []string, temperature float32) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.JSONCalls = append(c.JSONCalls, JSONCall{Parts: parts, Temperature: temperature})
	return c.JSONText, c.JSONErr
}

// Calls returns the total number of completion invocations of any kind.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.StreamCalls) + len(c.GenerateCalls) + len(c.JSONCalls)
}
