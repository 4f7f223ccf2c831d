package services

import (
	"context"
	"sort"
	"time"

	"github.com/custodia-labs/audita-core/internal/core/domain"
)

// coverageAccumulator collects per-category coverage contributions
type coverageAccumulator struct {
	sum   float64
	count int
}

func (a *coverageAccumulator) mean() float64 {
	if a == nil || a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Aggregate merges audit reports into corpus-level statistics: mean
// coverage per category, the framework-vs-artifact coverage gap, and a
// ranking of documents by overall score. A pure function of the given
// reports, fully recomputed on every call; there is no merge algebra
// across partial summaries.
func (s *auditService) Aggregate(ctx context.Context, reports []*domain.AuditReport) (*domain.CorpusSummary, error) {
	summary := &domain.CorpusSummary{
		Reports:        len(reports),
		MeanCoverage:   make(map[domain.CategoryID]float64),
		SeverityCounts: make(map[domain.Severity]int),
		GeneratedAt:    time.Now(),
	}
	if len(reports) == 0 {
		return summary, nil
	}

	overall := make(map[domain.CategoryID]*coverageAccumulator)
	framework := make(map[domain.CategoryID]*coverageAccumulator)
	artifact := make(map[domain.CategoryID]*coverageAccumulator)

	for _, report := range reports {
		// Reports carry their document's kind from audit time; anything
		// else counts toward the artifact mean
		kindAcc := artifact
		if report.Kind == domain.KindFramework {
			kindAcc = framework
		}

		for _, score := range report.PerCategory {
			cov := score.Coverage()
			accumulate(overall, score.Category, cov)
			accumulate(kindAcc, score.Category, cov)
		}

		for _, finding := range report.Findings {
			summary.SeverityCounts[finding.Severity]++
		}

		summary.Ranking = append(summary.Ranking, domain.DocumentRank{
			DocumentID:   report.DocumentID,
			OverallScore: report.OverallScore,
		})
	}

	for id, acc := range overall {
		summary.MeanCoverage[id] = acc.mean()
	}
	summary.Gaps = categoryGaps(framework, artifact)

	sort.SliceStable(summary.Ranking, func(i, j int) bool {
		if summary.Ranking[i].OverallScore != summary.Ranking[j].OverallScore {
			return summary.Ranking[i].OverallScore > summary.Ranking[j].OverallScore
		}
		return summary.Ranking[i].DocumentID < summary.Ranking[j].DocumentID
	})
	for i := range summary.Ranking {
		summary.Ranking[i].Rank = i + 1
	}

	return summary, nil
}

func accumulate(m map[domain.CategoryID]*coverageAccumulator, id domain.CategoryID, cov float64) {
	acc := m[id]
	if acc == nil {
		acc = &coverageAccumulator{}
		m[id] = acc
	}
	acc.sum += cov
	acc.count++
}

// categoryGaps computes framework mean minus artifact mean per category,
// over categories seen on either side, in sorted category order.
func categoryGaps(framework, artifact map[domain.CategoryID]*coverageAccumulator) []domain.CategoryGap {
	seen := make(map[domain.CategoryID]bool)
	for id := range framework {
		seen[id] = true
	}
	for id := range artifact {
		seen[id] = true
	}

	ids := make([]domain.CategoryID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	gaps := make([]domain.CategoryGap, 0, len(ids))
	for _, id := range ids {
		fm := framework[id].mean()
		am := artifact[id].mean()
		gaps = append(gaps, domain.CategoryGap{
			Category:      id,
			FrameworkMean: fm,
			ArtifactMean:  am,
			Gap:           fm - am,
		})
	}
	return gaps
}
