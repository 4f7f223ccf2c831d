package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, title, kind, declared_categories, metadata, created_at, updated_at, indexed_at`

// Save creates or updates a document
func (s *DocumentStore) Save(ctx context.Context, doc *domain.SourceDocument) error {
	return saveDocument(ctx, s.db, doc)
}

// SaveWithChunks saves the document and replaces its chunks in one
// transaction. Readers observe either the prior document with its prior
// chunks or the new document with the new set, never a mix.
func (s *DocumentStore) SaveWithChunks(ctx context.Context, doc *domain.SourceDocument, chunks []*domain.Chunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := saveDocument(ctx, tx, doc); err != nil {
			return err
		}
		return replaceChunks(ctx, tx, doc.ID, chunks)
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveDocument(ctx context.Context, db execer, doc *domain.SourceDocument) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (id, title, kind, declared_categories, metadata, created_at, updated_at, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			kind = EXCLUDED.kind,
			declared_categories = EXCLUDED.declared_categories,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			indexed_at = EXCLUDED.indexed_at
	`

	_, err = db.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Kind,
		pq.Array(categoryStrings(doc.DeclaredCategories)),
		metadataJSON,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.IndexedAt,
	)
	return err
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.SourceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListByKind retrieves all documents of one kind
func (s *DocumentStore) ListByKind(ctx context.Context, kind domain.DocumentKind) ([]*domain.SourceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE kind = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// List retrieves all documents
func (s *DocumentStore) List(ctx context.Context) ([]*domain.SourceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Delete deletes a document. Chunks cascade at the schema level.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns document counts partitioned by kind
func (s *DocumentStore) Count(ctx context.Context) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'framework'),
			COUNT(*) FILTER (WHERE kind = 'artifact')
		FROM documents
	`
	var framework, artifact int
	err := s.db.QueryRowContext(ctx, query).Scan(&framework, &artifact)
	return framework, artifact, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.SourceDocument, error) {
	var doc domain.SourceDocument
	var declared pq.StringArray
	var metadataJSON []byte

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Kind,
		&declared,
		&metadataJSON,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.IndexedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.DeclaredCategories = categoryIDs(declared)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, err
		}
	}

	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*domain.SourceDocument, error) {
	var docs []*domain.SourceDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func categoryStrings(ids []domain.CategoryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func categoryIDs(strs []string) []domain.CategoryID {
	if len(strs) == 0 {
		return nil
	}
	out := make([]domain.CategoryID, len(strs))
	for i, s := range strs {
		out[i] = domain.CategoryID(s)
	}
	return out
}
