package domain

import (
	"math"
	"testing"
)

func TestDefaultSeverity(t *testing.T) {
	tests := []struct {
		name           string
		presence       bool
		isQuantitative bool
		weight         float64
		want           Severity
	}{
		{"absent high weight", false, false, 0.9, SeverityCritical},
		{"absent low weight", false, true, 0.1, SeverityCritical},
		{"qualitative weight 0.8", true, false, 0.8, SeverityHigh},
		{"qualitative weight 0.7 boundary", true, false, 0.7, SeverityHigh},
		{"qualitative weight 0.5", true, false, 0.5, SeverityMedium},
		{"quantitative", true, true, 1.0, SeverityNone},
		{"quantitative low weight", true, true, 0.1, SeverityNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultSeverity(tt.presence, tt.isQuantitative, tt.weight)
			if got != tt.want {
				t.Errorf("DefaultSeverity(%v, %v, %v) = %s, want %s",
					tt.presence, tt.isQuantitative, tt.weight, got, tt.want)
			}
		})
	}
}

func TestCoverageScore_Coverage(t *testing.T) {
	absent := CoverageScore{Presence: false}
	if absent.Coverage() != 0 {
		t.Errorf("absent coverage should be 0, got %v", absent.Coverage())
	}

	qualitative := CoverageScore{Presence: true, IsQuantitative: false}
	if qualitative.Coverage() != 0.5 {
		t.Errorf("qualitative coverage should be 0.5, got %v", qualitative.Coverage())
	}

	quantitative := CoverageScore{Presence: true, IsQuantitative: true}
	if quantitative.Coverage() != 1 {
		t.Errorf("quantitative coverage should be 1, got %v", quantitative.Coverage())
	}
}

func TestOverallScore_EqualWeights(t *testing.T) {
	// Three categories with equal weight 1.0 and coverage {1, 0.5, 0}
	// must yield overall 0.5.
	tax := Taxonomy{
		"a": {Name: "A", Weight: 1.0, Exemplars: []string{"a"}},
		"b": {Name: "B", Weight: 1.0, Exemplars: []string{"b"}},
		"c": {Name: "C", Weight: 1.0, Exemplars: []string{"c"}},
	}
	scores := []CoverageScore{
		{Category: "a", Presence: true, IsQuantitative: true},
		{Category: "b", Presence: true, IsQuantitative: false},
		{Category: "c", Presence: false},
	}

	got := OverallScore(tax, scores)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("overall score = %v, want 0.5", got)
	}
}

func TestOverallScore_WeightNormalized(t *testing.T) {
	tax := Taxonomy{
		"heavy": {Name: "H", Weight: 1.0, Exemplars: []string{"h"}},
		"light": {Name: "L", Weight: 0.5, Exemplars: []string{"l"}},
	}
	scores := []CoverageScore{
		{Category: "heavy", Presence: true, IsQuantitative: true}, // coverage 1
		{Category: "light", Presence: false},                     // coverage 0
	}

	// (1.0*1 + 0.5*0) / 1.5
	want := 1.0 / 1.5
	got := OverallScore(tax, scores)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("overall score = %v, want %v", got, want)
	}
}

func TestOverallScore_Empty(t *testing.T) {
	if got := OverallScore(DefaultTaxonomy(), nil); got != 0 {
		t.Errorf("overall score of empty slice should be 0, got %v", got)
	}
}
