package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ReportStore = (*ReportStore)(nil)

// ReportStore implements driven.ReportStore using PostgreSQL.
// Reports are stored whole as JSON: they are immutable after computation
// and replaced wholesale on re-audit.
type ReportStore struct {
	db *DB
}

// NewReportStore creates a new ReportStore
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
}

// Save stores a report, replacing any prior report for the document
func (s *ReportStore) Save(ctx context.Context, report *domain.AuditReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_reports (document_id, report, generated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id) DO UPDATE SET
			report = EXCLUDED.report,
			generated_at = EXCLUDED.generated_at
	`
	_, err = s.db.ExecContext(ctx, query, report.DocumentID, data, report.GeneratedAt)
	return err
}

// Get retrieves the report for a document
func (s *ReportStore) Get(ctx context.Context, documentID string) (*domain.AuditReport, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM audit_reports WHERE document_id = $1`, documentID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var report domain.AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// List retrieves all stored reports
func (s *ReportStore) List(ctx context.Context) ([]*domain.AuditReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT report FROM audit_reports ORDER BY document_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*domain.AuditReport
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var report domain.AuditReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, err
		}
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Delete removes the report for a document
func (s *ReportStore) Delete(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_reports WHERE document_id = $1`, documentID)
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
