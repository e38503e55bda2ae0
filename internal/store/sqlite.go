package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// schema holds the documents table (one row per chunk, keyed by doc_id),
// the collection's source inventory (for incremental index_directory
// sync and get_status), and a generic key-value state table.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id      TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	content     TEXT NOT NULL,
	metadata    TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);

CREATE TABLE IF NOT EXISTS sources (
	source        TEXT PRIMARY KEY,
	last_modified DATETIME NOT NULL,
	chunk_count   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DocRecord is one persisted document row.
type DocRecord struct {
	DocID     string
	Source    string
	Content   string
	Metadata  string // JSON-encoded map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore persists chunk content and metadata in SQLite, separate
// from the vector/BM25 indices so get(), reconstruct_document, and
// incremental index_directory sync don't need the embedder or HNSW graph
// loaded.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore opens (creating if absent) a SQLite database at path,
// in WAL mode with a single writer connection — mirroring the teacher's
// single-connection-pool discipline for an embedded, single-process store.
func NewDocumentStore(path string) (*DocumentStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := validateIntegrity(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &DocumentStore{db: db}, nil
}

// validateIntegrity runs PRAGMA integrity_check and surfaces corruption as
// an error rather than silently operating on a damaged database; the
// caller (index.Indexer) decides whether to rebuild.
func validateIntegrity(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Upsert inserts or replaces docs.
func (s *DocumentStore) Upsert(ctx context.Context, docs []*DocRecord) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (doc_id, source, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			source=excluded.source, content=excluded.content,
			metadata=excluded.metadata, updated_at=excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.DocID, d.Source, d.Content, d.Metadata, d.CreatedAt, d.UpdatedAt); err != nil {
			return fmt.Errorf("store: upsert %s: %w", d.DocID, err)
		}
	}
	return tx.Commit()
}

// Get fetches docs by id, skipping ids that don't exist.
func (s *DocumentStore) Get(ctx context.Context, ids []string) ([]*DocRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT doc_id, source, content, metadata, created_at, updated_at FROM documents WHERE doc_id IN (%s)", placeholders,
	), args...)
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	defer rows.Close()
	return scanDocRecords(rows)
}

// GetBySource returns every chunk belonging to source, ordered by doc_id as
// a string (so "#chunk10" sorts before "#chunk2"). reconstruct_document does
// not use it; it sorts chunks by chunk_index itself.
func (s *DocumentStore) GetBySource(ctx context.Context, source string) ([]*DocRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_id, source, content, metadata, created_at, updated_at FROM documents WHERE source = ? ORDER BY doc_id", source)
	if err != nil {
		return nil, fmt.Errorf("store: get by source: %w", err)
	}
	defer rows.Close()
	return scanDocRecords(rows)
}

func scanDocRecords(rows *sql.Rows) ([]*DocRecord, error) {
	var out []*DocRecord
	for rows.Next() {
		d := &DocRecord{}
		if err := rows.Scan(&d.DocID, &d.Source, &d.Content, &d.Metadata, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes docs by id.
func (s *DocumentStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM documents WHERE doc_id = ?")
	if err != nil {
		return fmt.Errorf("store: prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("store: delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteBySource removes every chunk belonging to source, returning the
// count removed.
func (s *DocumentStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE source = ?", source)
	if err != nil {
		return 0, fmt.Errorf("store: delete by source: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AllIDs returns every doc_id currently stored, for consistency checks
// between the document store and the vector/BM25 indices.
func (s *DocumentStore) AllIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT doc_id FROM documents")
	if err != nil {
		return nil, fmt.Errorf("store: all ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored chunks.
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// DistinctSources returns every distinct source path with a chunk on file,
// used by index_directory's incremental-sync pass to find
// files that were removed from disk since the last index.
func (s *DocumentStore) DistinctSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT source FROM documents")
	if err != nil {
		return nil, fmt.Errorf("store: distinct sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("store: scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// TouchSource records source's last-seen modification time and chunk
// count, used to decide whether a file needs re-chunking on the next
// index_directory pass.
func (s *DocumentStore) TouchSource(ctx context.Context, source string, lastModified time.Time, chunkCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (source, last_modified, chunk_count) VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET last_modified=excluded.last_modified, chunk_count=excluded.chunk_count
	`, source, lastModified, chunkCount)
	return err
}

// SourceModified returns the last-recorded modification time for source
// and whether a record exists at all.
func (s *DocumentStore) SourceModified(ctx context.Context, source string) (time.Time, bool, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, "SELECT last_modified FROM sources WHERE source = ?", source).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// DeleteSource removes source's inventory row.
func (s *DocumentStore) DeleteSource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE source = ?", source)
	return err
}

// GetState reads a value from the key-value state table; it returns ""
// and no error when key is unset.
func (s *DocumentStore) GetState(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetState writes a value to the key-value state table.
func (s *DocumentStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	return err
}

// Close closes the underlying database connection.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection so callers that need a SQLite
// table of their own (telemetry's query metrics, for instance) can share
// the single-writer connection pool instead of opening a second file.
func (s *DocumentStore) DB() *sql.DB {
	return s.db
}
