// Copyright 2026 Lectern Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lexical provides the BM25 side of the hybrid store, backed by
// SQLite FTS5. The same database doubles as the chunk catalog: content
// hashes for exact dedup, MinHash signatures for query-time dedup, and
// document existence checks for idempotent re-ingest all live here.
package lexical

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lectern-ai/lectern/pkg/document"

	_ "github.com/mattn/go-sqlite3"
)

// Schema creation SQL
const createChunksSchemaSQL = `
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id TEXT NOT NULL UNIQUE,
    document_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_type TEXT NOT NULL,
    week_number INTEGER NOT NULL DEFAULT 0,
    module_name TEXT NOT NULL DEFAULT '',
    academic_year TEXT NOT NULL DEFAULT '',
    heading TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    signature BLOB,
    chunk_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`

const createChunksIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(content_hash)`

const createChunksFTSSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    content, heading,
    content='chunks', content_rowid='rowid'
)`

// Triggers keep the external-content FTS table in sync with chunks.
const createChunksTriggersSQL = `
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, content, heading)
    VALUES (new.rowid, new.content, new.heading);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content, heading)
    VALUES ('delete', old.rowid, old.content, old.heading);
END;
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content, heading)
    VALUES ('delete', old.rowid, old.content, old.heading);
    INSERT INTO chunks_fts(rowid, content, heading)
    VALUES (new.rowid, new.content, new.heading);
END`

// Hit is one BM25 search result.
type Hit struct {
	Score     float64
	Signature []byte
	Chunk     document.Chunk
}

// Index is a SQLite-backed full-text index over chunks.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens or creates the index at path. The parent directory is
// created if missing.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		createChunksSchemaSQL,
		createChunksIndexSQL,
		createChunksFTSSQL,
		createChunksTriggersSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize lexical schema: %w", err)
		}
	}

	return &Index{db: db, path: path}, nil
}

// Close closes the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}

// Upsert inserts or replaces chunks in one transaction. Signatures are
// stored alongside for query-time near-duplicate collapsing.
func (x *Index) Upsert(ctx context.Context, chunks []document.Chunk, signatures map[string][]byte) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (
			chunk_id, document_id, file_path, file_type,
			week_number, module_name, academic_year, heading,
			content, content_hash, signature, chunk_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			file_path = excluded.file_path,
			file_type = excluded.file_type,
			week_number = excluded.week_number,
			module_name = excluded.module_name,
			academic_year = excluded.academic_year,
			heading = excluded.heading,
			content = excluded.content,
			content_hash = excluded.content_hash,
			signature = excluded.signature,
			chunk_json = excluded.chunk_json,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		chunkJSON, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %s: %w", ch.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ChunkID, ch.DocumentID, ch.SourceFile, string(ch.FileType),
			ch.WeekNumber, ch.ModuleName, ch.AcademicYear, ch.Title,
			ch.Content, ch.ContentHash, signatures[ch.ChunkID], string(chunkJSON),
			ch.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", ch.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Search runs a BM25-ranked full-text query with optional exact-match
// facet filters (week_number, module_name, file_type, academic_year,
// document_id).
func (x *Index) Search(ctx context.Context, query string, topK int, filter map[string]any) ([]Hit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	sb := strings.Builder{}
	sb.WriteString(`
		SELECT c.chunk_json, c.signature, -bm25(chunks_fts) AS score
		FROM chunks_fts f
		JOIN chunks c ON c.rowid = f.rowid
		WHERE chunks_fts MATCH ?`)
	args := []any{match}

	for _, facet := range []string{"week_number", "module_name", "file_type", "academic_year", "document_id"} {
		if v, ok := filter[facet]; ok {
			sb.WriteString(" AND c." + facet + " = ?")
			args = append(args, v)
		}
	}
	sb.WriteString(" ORDER BY bm25(chunks_fts) LIMIT ?")
	args = append(args, topK)

	rows, err := x.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var chunkJSON string
		var sig []byte
		var score float64
		if err := rows.Scan(&chunkJSON, &sig, &score); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		var ch document.Chunk
		if err := json.Unmarshal([]byte(chunkJSON), &ch); err != nil {
			return nil, fmt.Errorf("failed to decode chunk: %w", err)
		}
		hits = append(hits, Hit{Score: score, Signature: sig, Chunk: ch})
	}
	return hits, rows.Err()
}

// Get returns stored chunks and signatures by chunk ID. IDs with no row
// are absent from the result.
func (x *Index) Get(ctx context.Context, ids []string) (map[string]Hit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := x.db.QueryContext(ctx,
		"SELECT chunk_id, chunk_json, signature FROM chunks WHERE chunk_id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Hit, len(ids))
	for rows.Next() {
		var id, chunkJSON string
		var sig []byte
		if err := rows.Scan(&id, &chunkJSON, &sig); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		var ch document.Chunk
		if err := json.Unmarshal([]byte(chunkJSON), &ch); err != nil {
			return nil, fmt.Errorf("failed to decode chunk: %w", err)
		}
		out[id] = Hit{Chunk: ch, Signature: sig}
	}
	return out, rows.Err()
}

// ContentHashOwner returns the ID of the stored chunk carrying the
// hash, so the exact stage of ingest-time dedup can name the canonical
// chunk a duplicate collapses into.
func (x *Index) ContentHashOwner(ctx context.Context, hash string) (string, bool, error) {
	var id string
	err := x.db.QueryRowContext(ctx,
		"SELECT chunk_id FROM chunks WHERE content_hash = ? LIMIT 1", hash).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hash lookup failed: %w", err)
	}
	return id, true, nil
}

// HasContentHash reports whether any stored chunk carries the hash.
func (x *Index) HasContentHash(ctx context.Context, hash string) (bool, error) {
	_, ok, err := x.ContentHashOwner(ctx, hash)
	return ok, err
}

// ExistsDocument reports whether any chunk of the document is indexed.
func (x *Index) ExistsDocument(ctx context.Context, documentID string) (bool, error) {
	var one int
	err := x.db.QueryRowContext(ctx,
		"SELECT 1 FROM chunks WHERE document_id = ? LIMIT 1", documentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("document lookup failed: %w", err)
	}
	return true, nil
}

// DeleteByDocument removes all chunks of a document.
func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := x.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// DeleteStaleByPath removes chunks indexed for the same file under an
// older document ID. A changed file gets a new mtime-derived ID; rows
// under previous IDs are tombstones. Returns the removed document IDs
// so vector-side cleanup can follow.
func (x *Index) DeleteStaleByPath(ctx context.Context, filePath, keepDocumentID string) ([]string, error) {
	rows, err := x.db.QueryContext(ctx,
		"SELECT DISTINCT document_id FROM chunks WHERE file_path = ? AND document_id != ?",
		filePath, keepDocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale documents: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		stale = append(stale, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(stale) > 0 {
		if _, err := x.db.ExecContext(ctx,
			"DELETE FROM chunks WHERE file_path = ? AND document_id != ?",
			filePath, keepDocumentID); err != nil {
			return nil, fmt.Errorf("failed to delete stale chunks: %w", err)
		}
	}
	return stale, nil
}

// Count returns the number of indexed chunks.
func (x *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms, so
// user punctuation cannot break the match syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, "")+`"`)
	}
	return strings.Join(terms, " OR ")
}
