package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// CategoryID identifies a governance category in the taxonomy
type CategoryID string

// Well-known category IDs used by the default taxonomy.
// The taxonomy itself is configuration; these constants exist so tests
// and defaults don't scatter string literals.
const (
	CategorySafety      CategoryID = "safety_risk"
	CategoryData        CategoryID = "training_data"
	CategoryGovernance  CategoryID = "governance"
	CategoryEquity      CategoryID = "equity"
	CategoryPerformance CategoryID = "performance"
	CategoryIntendedUse CategoryID = "intended_use"
)

// Category describes one governance category: its policy weight and the
// exemplar descriptions used for zero-shot tagging when a document does
// not declare categories explicitly.
type Category struct {
	// Name is the human-readable category name
	Name string `json:"name"`

	// Weight is the policy importance in [0,1]
	Weight float64 `json:"weight"`

	// Exemplars are short descriptions of content that belongs to this
	// category. Their embedding centroid is the category's tagging anchor.
	Exemplars []string `json:"exemplars"`
}

// Taxonomy is the fixed, externally configured set of governance categories
type Taxonomy map[CategoryID]Category

// Validate checks the taxonomy is usable: non-empty, weights in [0,1],
// and at least one exemplar per category (needed for zero-shot tagging).
func (t Taxonomy) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: taxonomy has no categories", ErrInvalidInput)
	}
	for id, cat := range t {
		if cat.Weight < 0 || cat.Weight > 1 {
			return fmt.Errorf("%w: category %s weight %v outside [0,1]", ErrInvalidInput, id, cat.Weight)
		}
		if len(cat.Exemplars) == 0 {
			return fmt.Errorf("%w: category %s has no exemplars", ErrInvalidInput, id)
		}
	}
	return nil
}

// Contains reports whether the category is part of the taxonomy
func (t Taxonomy) Contains(id CategoryID) bool {
	_, ok := t[id]
	return ok
}

// Weight returns the weight for a category, or ErrUnknownCategory
func (t Taxonomy) Weight(id CategoryID) (float64, error) {
	cat, ok := t[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	return cat.Weight, nil
}

// IDs returns all category IDs in deterministic (sorted) order
func (t Taxonomy) IDs() []CategoryID {
	ids := make([]CategoryID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TotalWeight returns the sum of all category weights
func (t Taxonomy) TotalWeight() float64 {
	var sum float64
	for _, cat := range t {
		sum += cat.Weight
	}
	return sum
}

// LoadTaxonomy reads a taxonomy from a JSON file and validates it
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	var t Taxonomy
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// DefaultTaxonomy returns the built-in governance taxonomy.
// Equity carries the maximum weight by policy design.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		CategorySafety: {
			Name:   "Safety & Risk",
			Weight: 0.9,
			Exemplars: []string{
				"Evaluation of harmful outputs, misuse potential and safety mitigations",
				"Red teaming results and known failure modes of the system",
			},
		},
		CategoryData: {
			Name:   "Training Data",
			Weight: 0.8,
			Exemplars: []string{
				"Description of training data sources, collection and preprocessing",
				"Data licensing, consent and personally identifiable information handling",
			},
		},
		CategoryGovernance: {
			Name:   "Governance & Accountability",
			Weight: 0.7,
			Exemplars: []string{
				"Organizational accountability, oversight processes and incident response",
				"Compliance with applicable regulation and internal review boards",
			},
		},
		CategoryEquity: {
			Name:   "Equity & Fairness",
			Weight: 1.0,
			Exemplars: []string{
				"Disaggregated performance across demographic groups and languages",
				"Bias measurement, fairness metrics and mitigation strategies",
			},
		},
		CategoryPerformance: {
			Name:   "Performance",
			Weight: 0.6,
			Exemplars: []string{
				"Benchmark results, accuracy metrics and evaluation methodology",
				"Performance limitations and conditions under which quality degrades",
			},
		},
		CategoryIntendedUse: {
			Name:   "Intended Use",
			Weight: 0.5,
			Exemplars: []string{
				"Intended applications, target users and deployment context",
				"Out-of-scope uses and explicitly discouraged applications",
			},
		},
	}
}
