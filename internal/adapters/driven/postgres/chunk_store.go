package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.ChunkStore using PostgreSQL.
// Chunks carry their tags and embedding vectors; the vector index holds
// a copy of each embedding and is rebuilt from this store on startup.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

const chunkColumns = `id, document_id, kind, content, position, start_char, end_char, categories, embedding, created_at`

// ReplaceForDocument atomically replaces all chunks of a document.
// Prior chunks are removed and the new set inserted in one transaction;
// a failure leaves prior state intact.
func (s *ChunkStore) ReplaceForDocument(ctx context.Context, documentID string, chunks []*domain.Chunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return replaceChunks(ctx, tx, documentID, chunks)
	})
}

// replaceChunks deletes and re-inserts a document's chunks inside the
// caller's transaction. Shared with DocumentStore.SaveWithChunks.
func replaceChunks(ctx context.Context, tx *sql.Tx, documentID string, chunks []*domain.Chunk) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	query := `
		INSERT INTO chunks (id, document_id, kind, content, position, start_char, end_char, categories, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.DocumentID,
			chunk.Kind,
			chunk.Content,
			chunk.Position,
			chunk.StartChar,
			chunk.EndChar,
			pq.Array(categoryStrings(chunk.Categories)),
			pq.Array(chunk.Embedding),
			chunk.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByDocument retrieves all chunks for a document in position order
func (s *ChunkStore) GetByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM chunks
		WHERE document_id = $1
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// ListEmbedded retrieves every chunk carrying an embedding, in insertion
// order. The seq column preserves insertion order across restarts so
// index rebuilds reproduce the original search tie-breaking.
func (s *ChunkStore) ListEmbedded(ctx context.Context) ([]*domain.Chunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// DeleteByDocument deletes all chunks for a document
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

// Count returns the total chunk count and how many carry no category tag
func (s *ChunkStore) Count(ctx context.Context) (int, int, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE cardinality(categories) = 0)
		FROM chunks
	`
	var total, untagged int
	err := s.db.QueryRowContext(ctx, query).Scan(&total, &untagged)
	return total, untagged, err
}

func scanChunks(rows *sql.Rows) ([]*domain.Chunk, error) {
	var chunks []*domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var categories pq.StringArray
		var embedding pq.Float32Array

		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Kind,
			&chunk.Content,
			&chunk.Position,
			&chunk.StartChar,
			&chunk.EndChar,
			&categories,
			&embedding,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		chunk.Categories = categoryIDs(categories)
		chunk.Embedding = []float32(embedding)
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}
