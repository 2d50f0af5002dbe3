package testutil

import (
	"context"
	"sync"

	"github.com/ragline/ragline/internal/ingest"
)

// Documents is an in-memory ingest.Documents recording upserts and deletes.
// Error fields, when set, fail the corresponding operation.
type Documents struct {
	mu sync.Mutex

	Texts map[string]string // url -> extracted text
	PDFs  map[string][]byte // url -> raw bytes

	UpsertTextErr error
	UpsertPDFErr  error
	DeleteErr     error

	Deletes []string
}

func NewDocuments() *Documents {
	return &Documents{
		Texts: make(map[string]string),
		PDFs:  make(map[string][]byte),
	}
}

func (d *Documents) UpsertText(_ context.Context, sourceURL, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.UpsertTextErr != nil {
		return d.UpsertTextErr
	}
	d.Texts[sourceURL] = text
	return nil
}

func (d *Documents) UpsertPDF(_ context.Context, sourceURL string, raw []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.UpsertPDFErr != nil {
		return d.UpsertPDFErr
	}
	d.PDFs[sourceURL] = raw
	return nil
}

func (d *Documents) DeleteByURL(_ context.Context, sourceURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DeleteErr != nil {
		return d.DeleteErr
	}
	d.Deletes = append(d.Deletes, sourceURL)
	delete(d.Texts, sourceURL)
	delete(d.PDFs, sourceURL)
	return nil
}

// Publisher records published tasks. PublishErr, when set, fails every call.
type Publisher struct {
	mu         sync.Mutex
	Tasks      []ingest.Task
	PublishErr error
}

func (p *Publisher) Publish(_ context.Context, task ingest.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.Tasks = append(p.Tasks, task)
	return nil
}

// Published returns a copy of the recorded tasks.
func (p *Publisher) Published() []ingest.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ingest.Task, len(p.Tasks))
	copy(out, p.Tasks)
	return out
}
