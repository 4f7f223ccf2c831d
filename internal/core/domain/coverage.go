package domain

import "time"

// Severity classifies how serious a documentation gap is
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityNone     Severity = "none"
)

// SeverityFunc derives a gap severity from audit signals.
// Callers may supply an alternate function with this signature; the
// default implements the standard severity table.
type SeverityFunc func(presence, isQuantitative bool, weight float64) Severity

// DefaultSeverity is the standard severity table:
//
//	absent                       -> critical
//	present, qualitative only    -> high when weight >= 0.7, else medium
//	present, quantitative        -> none
func DefaultSeverity(presence, isQuantitative bool, weight float64) Severity {
	if !presence {
		return SeverityCritical
	}
	if !isQuantitative {
		if weight >= 0.7 {
			return SeverityHigh
		}
		return SeverityMedium
	}
	return SeverityNone
}

// CoverageScore records how well one artifact document addresses one
// governance category, per the framework corpus.
type CoverageScore struct {
	Category CategoryID `json:"category"`

	// Presence is true when at least one artifact chunk tagged with the
	// category has a framework match above the relevance threshold
	Presence bool `json:"presence"`

	// IsQuantitative is true when a matched chunk contains numeric or
	// statistical content (lexical heuristic, not language understanding)
	IsQuantitative bool `json:"is_quantitative"`

	// MatchedChunkIDs lists the artifact chunks that matched, in
	// descending best-similarity order
	MatchedChunkIDs []string `json:"matched_chunk_ids,omitempty"`

	// Confidence is the mean of the top matched similarities, clamped to [0,1]
	Confidence float64 `json:"confidence"`

	Severity Severity `json:"severity"`
}

// Coverage maps the score to the numeric coverage contribution:
// 0 absent, 0.5 present-qualitative, 1 present-quantitative.
func (s CoverageScore) Coverage() float64 {
	if !s.Presence {
		return 0
	}
	if !s.IsQuantitative {
		return 0.5
	}
	return 1
}

// GapFinding is the policy-facing classification of one documentation gap
type GapFinding struct {
	Category  CategoryID `json:"category"`
	Severity  Severity   `json:"severity"`
	Rationale string     `json:"rationale"`
}

// AuditReport is the machine-readable audit result for one artifact
// document. It is immutable after computation and recomputed wholesale on
// re-audit; there is no partial patching.
type AuditReport struct {
	DocumentID string `json:"document_id"`

	// Kind records the audited document's partition at audit time, so
	// aggregation stays a pure function of the reports it is given even
	// when the document is later deleted or re-kinded.
	Kind DocumentKind `json:"kind"`

	PerCategory []CoverageScore `json:"per_category"`
	Findings    []GapFinding    `json:"findings"`

	// OverallScore is the weight-normalized coverage:
	// sum(weight_c * coverage_c) / sum(weight_c)
	OverallScore float64 `json:"overall_score"`

	GeneratedAt time.Time `json:"generated_at"`
}

// OverallScore computes the weight-normalized coverage for a set of
// per-category scores under the given taxonomy.
func OverallScore(taxonomy Taxonomy, scores []CoverageScore) float64 {
	var weighted, total float64
	for _, s := range scores {
		cat, ok := taxonomy[s.Category]
		if !ok {
			continue
		}
		weighted += cat.Weight * s.Coverage()
		total += cat.Weight
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// CategoryGap is the per-category framework-vs-artifact coverage gap
type CategoryGap struct {
	Category      CategoryID `json:"category"`
	FrameworkMean float64    `json:"framework_mean"`
	ArtifactMean  float64    `json:"artifact_mean"`

	// Gap is framework mean minus artifact mean
	Gap float64 `json:"gap"`
}

// DocumentRank is one entry in the overall-score ranking
type DocumentRank struct {
	DocumentID   string  `json:"document_id"`
	OverallScore float64 `json:"overall_score"`
	Rank         int     `json:"rank"`
}

// CorpusSummary aggregates per-document audit reports into corpus-level
// statistics. It is a pure function of the reports it was built from.
type CorpusSummary struct {
	Reports int `json:"reports"`

	// MeanCoverage is the mean coverage per category across all reports
	MeanCoverage map[CategoryID]float64 `json:"mean_coverage"`

	Gaps    []CategoryGap  `json:"gaps,omitempty"`
	Ranking []DocumentRank `json:"ranking"`

	// SeverityCounts tallies findings by severity across all reports
	SeverityCounts map[Severity]int `json:"severity_counts"`

	GeneratedAt time.Time `json:"generated_at"`
}
