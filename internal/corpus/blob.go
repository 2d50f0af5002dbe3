package corpus

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Blobs is the backing blob storage for document source content, keyed by
// blob name (see Label). It is a thin wrapper over a badger keyspace; blob
// values are stored with a one-byte content-kind prefix so text and PDF
// blobs can be told apart on read.
type Blobs struct {
	db     *badger.DB
	logger *slog.Logger
}

// Content-kind markers.
const (
	blobKindText byte = 't'
	blobKindPDF  byte = 'p'
)

// ErrBlobNotFound is returned by Get for unknown names. Delete treats an
// absent blob as success.
var ErrBlobNotFound = errors.New("blob not found")

// OpenBlobs opens (or creates) the blob store at dir.
func OpenBlobs(dir string, logger *slog.Logger) (*Blobs, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening blob store at %s: %w", dir, err)
	}
	return &Blobs{db: db, logger: logger}, nil
}

// Close releases the underlying store.
func (b *Blobs) Close() error {
	return b.db.Close()
}

// Put stores a blob under name, replacing any previous value.
func (b *Blobs) Put(name string, pdf bool, data []byte) error {
	kind := blobKindText
	if pdf {
		kind = blobKindPDF
	}
	value := append([]byte{kind}, data...)

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), value)
	})
	if err != nil {
		return fmt.Errorf("storing blob %s: %w", name, err)
	}
	b.logger.Debug("stored blob", "name", name, "bytes", len(data))
	return nil
}

// Get returns a blob's content and whether it is a PDF.
func (b *Blobs) Get(name string) (data []byte, pdf bool, err error) {
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrBlobNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return ErrBlobNotFound
			}
			pdf = val[0] == blobKindPDF
			data = append([]byte(nil), val[1:]...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading blob %s: %w", name, err)
	}
	return data, pdf, nil
}

// Delete removes a blob. An already-absent blob is success, not an error,
// since deletes must be idempotent under at-least-once task delivery.
func (b *Blobs) Delete(name string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("deleting blob %s: %w", name, err)
	}
	return nil
}
