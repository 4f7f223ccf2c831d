package driving

import (
	"context"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// AuditService scores artifact documents against the framework corpus,
// category by category, and aggregates reports into corpus statistics.
type AuditService interface {
	// AuditDocument computes the coverage report for one artifact.
	// An artifact with zero chunks yields domain.ErrEmptyDocument and no
	// report; a category missing from the taxonomy yields
	// domain.ErrUnknownCategory.
	AuditDocument(ctx context.Context, documentID string) (*domain.AuditReport, error)

	// AuditAll audits every artifact document. Per-document failures are
	// isolated: one failed report does not abort the batch.
	AuditAll(ctx context.Context) ([]*domain.AuditReport, error)

	// GetReport returns the stored report for a document
	GetReport(ctx context.Context, documentID string) (*domain.AuditReport, error)

	// Aggregate merges audit reports into corpus-level statistics.
	// Pure function of its input: fully recomputed each call.
	Aggregate(ctx context.Context, reports []*domain.AuditReport) (*domain.CorpusSummary, error)
}
