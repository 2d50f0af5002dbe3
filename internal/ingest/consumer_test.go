package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ragline/ragline/internal/log"
	"github.com/ragline/ragline/internal/security"
)

// fakeDocuments is an in-memory Documents for state-machine tests.
type fakeDocuments struct {
	mu      sync.Mutex
	texts   map[string]string
	pdfs    map[string][]byte
	deletes []string

	textErr   error
	pdfErr    error
	deleteErr error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{texts: map[string]string{}, pdfs: map[string][]byte{}}
}

func (f *fakeDocuments) UpsertText(_ context.Context, url, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return f.textErr
	}
	f.texts[url] = text
	return nil
}

func (f *fakeDocuments) UpsertPDF(_ context.Context, url string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pdfErr != nil {
		return f.pdfErr
	}
	f.pdfs[url] = raw
	return nil
}

func (f *fakeDocuments) DeleteByURL(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, url)
	return nil
}

func newTestConsumer(t *testing.T, store Documents, prefixes []string) *Consumer {
	t.Helper()
	fetcher := NewFetcher(5*time.Second, "test-agent")
	return NewConsumer(store, security.NewAllowList(prefixes), fetcher, 0, log.NewNop())
}

func TestProcessMalformedTask(t *testing.T) {
	t.Parallel()

	c := newTestConsumer(t, newFakeDocuments(), []string{"https://example.org/"})

	for _, data := range []string{`not json`, `{"action":"upsert"}`, `{"action":"bogus","url":"https://example.org/a"}`} {
		if got := c.process(context.Background(), []byte(data)); got != ackDiscard {
			t.Errorf("process(%q) = %v, want ackDiscard", data, got)
		}
	}
}

func TestProcessEmptyAllowListNacks(t *testing.T) {
	t.Parallel()

	c := newTestConsumer(t, newFakeDocuments(), nil)

	got := c.process(context.Background(), []byte(`{"action":"delete","url":"https://example.org/a"}`))
	if got != nack {
		t.Errorf("process with empty allow-list = %v, want nack (fail closed, redeliver)", got)
	}
}

func TestProcessUnauthorizedURLDiscarded(t *testing.T) {
	t.Parallel()

	store := newFakeDocuments()
	c := newTestConsumer(t, store, []string{"https://example.org/"})

	got := c.process(context.Background(), []byte(`{"action":"upsert","url":"https://evil.example.com/a"}`))
	if got != ackDiscard {
		t.Errorf("process(unauthorized) = %v, want ackDiscard", got)
	}
	if len(store.texts) != 0 {
		t.Error("unauthorized task reached the store")
	}
}

func TestProcessDelete(t *testing.T) {
	t.Parallel()

	store := newFakeDocuments()
	c := newTestConsumer(t, store, []string{"https://example.org/"})
	data := []byte(`{"action":"delete","url":"https://example.org/gone"}`)

	// Deletes are idempotent: redelivery acknowledges again.
	for range 2 {
		if got := c.process(context.Background(), data); got != ackDone {
			t.Fatalf("process(delete) = %v, want ackDone", got)
		}
	}
	if len(store.deletes) != 2 {
		t.Errorf("deletes recorded = %d, want 2", len(store.deletes))
	}

	store.deleteErr = errors.New("index unavailable")
	if got := c.process(context.Background(), data); got != nack {
		t.Errorf("process(delete) with failing store = %v, want nack", got)
	}
}

func TestProcessContentUpsert(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div class="content-text-full">Office hours are 9 to 5.</div></body></html>`))
	}))
	defer srv.Close()

	store := newFakeDocuments()
	c := newTestConsumer(t, store, []string{srv.URL})

	data := []byte(`{"action":"upsert","url":"` + srv.URL + `/page"}`)
	if got := c.process(context.Background(), data); got != ackDone {
		t.Fatalf("process(content upsert) = %v, want ackDone", got)
	}
	if text := store.texts[srv.URL+"/page"]; text != "Office hours are 9 to 5." {
		t.Errorf("stored text = %q", text)
	}
}

func TestProcessContentFetchFailureDiscarded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestConsumer(t, newFakeDocuments(), []string{srv.URL})

	data := []byte(`{"action":"upsert","url":"` + srv.URL + `/missing"}`)
	if got := c.process(context.Background(), data); got != ackDiscard {
		t.Errorf("process(unreachable page) = %v, want ackDiscard (permanent content error)", got)
	}
}

func TestProcessContentEmptyExtractionDiscarded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><script>void(0)</script></body></html>`))
	}))
	defer srv.Close()

	store := newFakeDocuments()
	c := newTestConsumer(t, store, []string{srv.URL})

	data := []byte(`{"action":"upsert","url":"` + srv.URL + `/empty"}`)
	if got := c.process(context.Background(), data); got != ackDiscard {
		t.Errorf("process(empty page) = %v, want ackDiscard", got)
	}
	if len(store.texts) != 0 {
		t.Error("empty extraction was stored")
	}
}

func TestProcessContentStoreFailureNacks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>Some real page content here.</p></body></html>`))
	}))
	defer srv.Close()

	store := newFakeDocuments()
	store.textErr = errors.New("embedding quota exhausted")
	c := newTestConsumer(t, store, []string{srv.URL})

	data := []byte(`{"action":"upsert","url":"` + srv.URL + `/page"}`)
	if got := c.process(context.Background(), data); got != nack {
		t.Errorf("process with failing store = %v, want nack (transient, redeliver)", got)
	}
}

func TestProcessMediaUpsert(t *testing.T) {
	t.Parallel()

	pdf := []byte("%PDF-1.7 fake body")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	}))
	defer srv.Close()

	store := newFakeDocuments()
	c := newTestConsumer(t, store, []string{srv.URL})

	data := []byte(`{"action":"upsert","url":"` + srv.URL + `/doc.pdf","type":"media"}`)
	if got := c.process(context.Background(), data); got != ackDone {
		t.Fatalf("process(media upsert) = %v, want ackDone", got)
	}
	if got := store.pdfs[srv.URL+"/doc.pdf"]; string(got) != string(pdf) {
		t.Errorf("stored pdf = %q", got)
	}
}

func TestProcessMediaFetchFailureNacks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestConsumer(t, newFakeDocuments(), []string{srv.URL})

	data := []byte(`{"action":"upsert","url":"` + srv.URL + `/doc.pdf","type":"media"}`)
	if got := c.process(context.Background(), data); got != nack {
		t.Errorf("process(media fetch failure) = %v, want nack", got)
	}
}
