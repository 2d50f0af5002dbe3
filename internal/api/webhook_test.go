package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/log"
	"github.com/ragline/ragline/internal/security"
	"github.com/ragline/ragline/internal/testutil"
)

func newTestServer(t *testing.T, pub TaskPublisher, prefixes []string) *Server {
	t.Helper()
	return NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: chat.New(&testutil.Completer{}, log.NewNop()),
		Publisher:    pub,
		AllowList:    security.NewAllowList(prefixes),
	})
}

func postWebhook(t *testing.T, srv *Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/update-embedding", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhookContentUpsert(t *testing.T) {
	t.Parallel()

	pub := &testutil.Publisher{}
	srv := newTestServer(t, pub, []string{"https://example.org/"})

	rec := postWebhook(t, srv, map[string]any{
		"type": "content",
		"urls": map[string]string{"en-us": "https://example.org/page"},
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	tasks := pub.Published()
	require.Len(t, tasks, 1)
	assert.Equal(t, ingest.Task{
		Action: ingest.ActionUpsert,
		URL:    "https://example.org/page",
		Type:   ingest.TypeContent,
	}, tasks[0])

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["message"], "https://example.org/page")
}

func TestWebhookMediaUpsert(t *testing.T) {
	t.Parallel()

	pub := &testutil.Publisher{}
	srv := newTestServer(t, pub, []string{"https://example.org/"})

	rec := postWebhook(t, srv, map[string]any{
		"type":     "media",
		"mediaUrl": "https://example.org/doc.pdf",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	tasks := pub.Published()
	require.Len(t, tasks, 1)
	assert.Equal(t, ingest.TypeMedia, tasks[0].Type)
}

func TestWebhookDeleteTypes(t *testing.T) {
	t.Parallel()

	deleteCases := []string{
		"content-unpublished",
		"content-deleted",
		"content-moving-to-recycle-bin",
		"content-moved-to-recycle-bin",
	}
	for _, typ := range deleteCases {
		pub := &testutil.Publisher{}
		srv := newTestServer(t, pub, []string{"https://example.org/"})

		rec := postWebhook(t, srv, map[string]any{
			"type": typ,
			"urls": map[string]string{"en-us": "https://example.org/page"},
		})

		assert.Equal(t, http.StatusAccepted, rec.Code, "type %s", typ)
		tasks := pub.Published()
		require.Len(t, tasks, 1, "type %s", typ)
		assert.Equal(t, ingest.ActionDelete, tasks[0].Action, "type %s", typ)
		assert.Empty(t, tasks[0].Type, "delete tasks carry no content type")
	}

	// Media deletion types resolve their URL from mediaUrl.
	for _, typ := range []string{"media-deleted", "media-moving-to-recycle-bin", "media-moved-to-recycle-bin"} {
		pub := &testutil.Publisher{}
		srv := newTestServer(t, pub, []string{"https://example.org/"})

		rec := postWebhook(t, srv, map[string]any{
			"type":     typ,
			"mediaUrl": "https://example.org/doc.pdf",
		})

		assert.Equal(t, http.StatusAccepted, rec.Code, "type %s", typ)
		tasks := pub.Published()
		require.Len(t, tasks, 1, "type %s", typ)
		assert.Equal(t, ingest.ActionDelete, tasks[0].Action, "type %s", typ)
	}
}

func TestWebhookBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body any
	}{
		{"missing type", map[string]any{"urls": map[string]string{"en-us": "https://example.org/"}}},
		{"unknown type", map[string]any{"type": "content-archived", "urls": map[string]string{"en-us": "https://example.org/"}}},
		{"content without url", map[string]any{"type": "content"}},
		{"media without url", map[string]any{"type": "media"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pub := &testutil.Publisher{}
			srv := newTestServer(t, pub, []string{"https://example.org/"})

			rec := postWebhook(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, pub.Published())

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"], "error responses carry a message body")
		})
	}
}

func TestWebhookMalformedJSON(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &testutil.Publisher{}, []string{"https://example.org/"})
	req := httptest.NewRequest(http.MethodPost, "/update-embedding", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnauthorizedURL(t *testing.T) {
	t.Parallel()

	pub := &testutil.Publisher{}
	srv := newTestServer(t, pub, []string{"https://example.org/"})

	rec := postWebhook(t, srv, map[string]any{
		"type": "content",
		"urls": map[string]string{"en-us": "https://evil.example.com/page"},
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, pub.Published())
}

func TestWebhookEmptyAllowListFailsClosed(t *testing.T) {
	t.Parallel()

	pub := &testutil.Publisher{}
	srv := newTestServer(t, pub, nil)

	rec := postWebhook(t, srv, map[string]any{
		"type": "content",
		"urls": map[string]string{"en-us": "https://example.org/page"},
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, pub.Published())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "not configured")
}

func TestWebhookPublishFailure(t *testing.T) {
	t.Parallel()

	pub := &testutil.Publisher{PublishErr: testutil.ErrCompleterDown}
	srv := newTestServer(t, pub, []string{"https://example.org/"})

	rec := postWebhook(t, srv, map[string]any{
		"type": "content",
		"urls": map[string]string{"en-us": "https://example.org/page"},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
