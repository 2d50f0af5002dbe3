package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// VectorDimension must match the vector(768) column in the schema.
const VectorDimension = 768

// ErrEmptyContent indicates an upsert with nothing to index.
var ErrEmptyContent = errors.New("document content is empty")

// Embedder generates embedding vectors for indexing and retrieval.
// Satisfied by *llm.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentParser converts a binary document (PDF) into plain text. Satisfied
// by *llm.Client, which delegates parsing to the model.
type DocumentParser interface {
	ParseDocument(ctx context.Context, mimeType string, raw []byte) (string, error)
}

// Match is one retrieval hit.
type Match struct {
	Content    string
	Label      string
	URL        string
	Similarity float32
}

// DocumentInfo describes one live logical document.
type DocumentInfo struct {
	Label  string
	URL    string
	Chunks int
}

// Store is the corpus document index over PostgreSQL + pgvector, paired with
// the blob store holding the raw source content.
//
// Invariant: at most one live logical document per URL hash. Every upsert
// deletes existing rows for the hash before inserting, inside one
// transaction, so duplicate or re-delivered tasks converge on the same state.
//
// Store is safe for concurrent use, though the ingestion worker additionally
// serializes its writes by processing one task at a time.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	parser   DocumentParser
	blobs    *Blobs
	logger   *slog.Logger
}

// NewStore creates a Store.
func NewStore(pool *pgxpool.Pool, embedder Embedder, parser DocumentParser, blobs *Blobs, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, parser: parser, blobs: blobs, logger: logger}, nil
}

// NewPool creates a pgx pool with pgvector types registered on every
// connection.
func NewPool(ctx context.Context, connURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// UpsertText replaces the document for sourceURL with freshly chunked and
// embedded text. The raw text is also stored as the document's source blob.
func (s *Store) UpsertText(ctx context.Context, sourceURL, text string) error {
	if text == "" {
		return ErrEmptyContent
	}

	chunks := chunkText(text)
	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %d chunks for %s: %w", len(chunks), sourceURL, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	label := Label(sourceURL, false)
	if err := s.blobs.Put(label, false, []byte(text)); err != nil {
		return err
	}

	if err := s.replaceRows(ctx, sourceURL, label, chunks, vectors); err != nil {
		return err
	}

	s.logger.Info("upserted document", "url", sourceURL, "chunks", len(chunks))
	return nil
}

// UpsertPDF stores the raw PDF bytes as the source blob, has the document
// parser transcribe them to text, and indexes the result.
func (s *Store) UpsertPDF(ctx context.Context, sourceURL string, raw []byte) error {
	if len(raw) == 0 {
		return ErrEmptyContent
	}
	if s.parser == nil {
		return errors.New("no document parser configured")
	}

	if err := s.blobs.Put(Label(sourceURL, true), true, raw); err != nil {
		return err
	}

	text, err := s.parser.ParseDocument(ctx, "application/pdf", raw)
	if err != nil {
		return fmt.Errorf("parsing pdf for %s: %w", sourceURL, err)
	}
	if text == "" {
		return fmt.Errorf("%w: pdf parser produced no text for %s", ErrEmptyContent, sourceURL)
	}

	chunks := chunkText(text)
	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %d chunks for %s: %w", len(chunks), sourceURL, err)
	}

	if err := s.replaceRows(ctx, sourceURL, Label(sourceURL, true), chunks, vectors); err != nil {
		return err
	}

	s.logger.Info("upserted pdf document", "url", sourceURL, "chunks", len(chunks))
	return nil
}

// replaceRows deletes any rows for the URL's hash and inserts the new chunks
// in one transaction, preserving the delete-before-create invariant.
func (s *Store) replaceRows(ctx context.Context, sourceURL, label string, chunks []string, vectors [][]float32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM corpus_documents WHERE label LIKE $1`,
		hashPrefixPattern(HashURL(sourceURL)),
	); err != nil {
		return fmt.Errorf("deleting existing rows for %s: %w", sourceURL, err)
	}

	for i, chunk := range chunks {
		if _, err := tx.Exec(ctx,
			`INSERT INTO corpus_documents (label, url, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			label, sourceURL, i, chunk, pgvector.NewVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("inserting chunk %d for %s: %w", i, sourceURL, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert for %s: %w", sourceURL, err)
	}
	return nil
}

// DeleteByURL removes the document identified by sourceURL's hash from the
// index and deletes its source blob. Deleting an absent document succeeds.
func (s *Store) DeleteByURL(ctx context.Context, sourceURL string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM corpus_documents WHERE label LIKE $1`,
		hashPrefixPattern(HashURL(sourceURL)),
	)
	if err != nil {
		return fmt.Errorf("deleting index rows for %s: %w", sourceURL, err)
	}

	// Text and PDF blobs differ only in the suffix; remove both forms.
	if err := s.blobs.Delete(Label(sourceURL, false)); err != nil {
		return err
	}
	if err := s.blobs.Delete(Label(sourceURL, true)); err != nil {
		return err
	}

	s.logger.Info("deleted document", "url", sourceURL, "rows", tag.RowsAffected())
	return nil
}

// List returns every live logical document.
func (s *Store) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT label, url, count(*) FROM corpus_documents GROUP BY label, url ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		var chunks int64
		if err := rows.Scan(&d.Label, &d.URL, &chunks); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		d.Chunks = int(chunks)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Search returns the topK chunks nearest to query by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("embedder returned no vector for query")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content, label, url, 1 - (embedding <=> $1) AS similarity
		 FROM corpus_documents
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vectors[0]), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching corpus: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Content, &m.Label, &m.URL, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
