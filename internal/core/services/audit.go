package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/custodia-labs/audita-core/internal/core/domain"
	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
	"github.com/custodia-labs/audita-core/internal/core/ports/driving"
)

// Ensure auditService implements AuditService
var _ driving.AuditService = (*auditService)(nil)

// defaultQuantitativePattern is the lexical heuristic for quantitative
// content: digit sequences adjacent to percentage or unit markers, or a
// metric name followed closely by a number. It is a placeholder contract,
// deliberately simple, and replaceable via AuditServiceConfig.
var defaultQuantitativePattern = regexp.MustCompile(
	`(?i)\d+(?:[.,]\d+)?\s*(?:%|percent(?:age)?|points?|pp\b)|\b(?:accuracy|precision|recall|f1|auc|error rate)\b\D{0,10}\d`,
)

// auditService scores artifact documents against the framework corpus.
type auditService struct {
	documentStore      driven.DocumentStore
	chunkStore         driven.ChunkStore
	reportStore        driven.ReportStore
	index              driven.VectorIndex
	taxonomy           domain.Taxonomy
	topK               int
	relevanceThreshold float64
	severity           domain.SeverityFunc
	quantPattern       *regexp.Regexp
	logger             *slog.Logger
}

// AuditServiceConfig holds dependencies and tuning for the audit service.
type AuditServiceConfig struct {
	DocumentStore driven.DocumentStore
	ChunkStore    driven.ChunkStore
	ReportStore   driven.ReportStore
	Index         driven.VectorIndex
	Taxonomy      domain.Taxonomy

	// TopK is the number of framework neighbors retrieved per artifact
	// chunk (default 5)
	TopK int

	// RelevanceThreshold is the similarity a tagged chunk's best
	// framework match must strictly exceed to count as on-topic;
	// exact equality is still noise
	RelevanceThreshold float64

	// Severity overrides the default severity table
	Severity domain.SeverityFunc

	// QuantitativePattern overrides the numeric-content heuristic
	QuantitativePattern *regexp.Regexp

	Logger *slog.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(cfg AuditServiceConfig) driving.AuditService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	severity := cfg.Severity
	if severity == nil {
		severity = domain.DefaultSeverity
	}
	quantPattern := cfg.QuantitativePattern
	if quantPattern == nil {
		quantPattern = defaultQuantitativePattern
	}

	return &auditService{
		documentStore:      cfg.DocumentStore,
		chunkStore:         cfg.ChunkStore,
		reportStore:        cfg.ReportStore,
		index:              cfg.Index,
		taxonomy:           cfg.Taxonomy,
		topK:               topK,
		relevanceThreshold: cfg.RelevanceThreshold,
		severity:           severity,
		quantPattern:       quantPattern,
		logger:             logger,
	}
}

// AuditDocument computes and stores the coverage report for one document.
func (s *auditService) AuditDocument(ctx context.Context, documentID string) (*domain.AuditReport, error) {
	start := time.Now()

	doc, err := s.documentStore.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunkStore.GetByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, documentID)
	}

	// A tag outside the taxonomy is a configuration error, fatal to this
	// document's report
	for _, chunk := range chunks {
		for _, id := range chunk.Categories {
			if !s.taxonomy.Contains(id) {
				return nil, fmt.Errorf("%w: %s on chunk %s", domain.ErrUnknownCategory, id, chunk.ID)
			}
		}
	}

	var scores []domain.CoverageScore
	var findings []domain.GapFinding
	for _, categoryID := range s.taxonomy.IDs() {
		score, err := s.scoreCategory(ctx, categoryID, chunks)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)

		if score.Severity != domain.SeverityNone {
			findings = append(findings, domain.GapFinding{
				Category:  score.Category,
				Severity:  score.Severity,
				Rationale: gapRationale(score),
			})
		}
	}

	report := &domain.AuditReport{
		DocumentID:   documentID,
		Kind:         doc.Kind,
		PerCategory:  scores,
		Findings:     findings,
		OverallScore: domain.OverallScore(s.taxonomy, scores),
		GeneratedAt:  time.Now(),
	}

	if err := s.reportStore.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Info("document audited",
		"document_id", documentID,
		"kind", doc.Kind,
		"overall_score", report.OverallScore,
		"findings", len(findings),
		"duration_seconds", time.Since(start).Seconds(),
	)

	return report, nil
}

// scoreCategory computes the coverage score for one category.
func (s *auditService) scoreCategory(ctx context.Context, categoryID domain.CategoryID, chunks []*domain.Chunk) (domain.CoverageScore, error) {
	weight, err := s.taxonomy.Weight(categoryID)
	if err != nil {
		return domain.CoverageScore{}, err
	}

	type matched struct {
		chunkID      string
		best         float64
		quantitative bool
	}
	var matches []matched

	for _, chunk := range chunks {
		if !chunk.HasCategory(categoryID) || len(chunk.Embedding) == 0 {
			continue
		}

		hits, err := s.index.Search(ctx, chunk.Embedding, s.topK, driven.SearchFilter{
			Kind:     domain.KindFramework,
			Category: categoryID,
		})
		if err != nil {
			return domain.CoverageScore{}, fmt.Errorf("index search failed for category %s: %w", categoryID, err)
		}
		if len(hits) == 0 {
			continue
		}

		best := hits[0].Similarity
		if best <= s.relevanceThreshold {
			// Tagged but not recognizably on-topic: contributes nothing
			continue
		}
		matches = append(matches, matched{
			chunkID:      chunk.ID,
			best:         best,
			quantitative: s.quantPattern.MatchString(chunk.Content),
		})
	}

	score := domain.CoverageScore{Category: categoryID}
	if len(matches) > 0 {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].best > matches[j].best })

		var sum float64
		for _, m := range matches {
			score.MatchedChunkIDs = append(score.MatchedChunkIDs, m.chunkID)
			score.IsQuantitative = score.IsQuantitative || m.quantitative
			sum += m.best
		}
		score.Presence = true
		score.Confidence = clamp01(sum / float64(len(matches)))
	}
	score.Severity = s.severity(score.Presence, score.IsQuantitative, weight)
	return score, nil
}

// AuditAll audits every artifact document. Per-document failures are
// isolated and logged; the batch continues.
func (s *auditService) AuditAll(ctx context.Context) ([]*domain.AuditReport, error) {
	artifacts, err := s.documentStore.ListByKind(ctx, domain.KindArtifact)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifact documents: %w", err)
	}

	var reports []*domain.AuditReport
	for _, doc := range artifacts {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}

		report, err := s.AuditDocument(ctx, doc.ID)
		if err != nil {
			s.logger.Warn("audit failed", "document_id", doc.ID, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// GetReport returns the stored report for a document.
func (s *auditService) GetReport(ctx context.Context, documentID string) (*domain.AuditReport, error) {
	return s.reportStore.Get(ctx, documentID)
}

func gapRationale(score domain.CoverageScore) string {
	if !score.Presence {
		return fmt.Sprintf("no content addressing %s matched the framework corpus", score.Category)
	}
	return fmt.Sprintf("content addressing %s is qualitative only, no quantitative evidence found", score.Category)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
