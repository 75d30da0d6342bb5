package transcript

import (
	"testing"

	"dictation/internal/domain"
)

func TestAggregatorUsesFinalsAndTrailingHypothesis(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Handle(domain.Result{Kind: domain.ResultHypothesis, Text: "hello"})
	agg.Handle(domain.Result{Kind: domain.ResultRecognized, Text: "hello world"})
	if got := agg.Text(); got != "hello world" {
		t.Fatalf("final should supersede hypothesis, got %q", got)
	}

	agg.Handle(domain.Result{Kind: domain.ResultHypothesis, Text: "and again"})
	if got := agg.Text(); got != "hello world and again" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	if finals := agg.Finals(); len(finals) != 1 || finals[0] != "hello world" {
		t.Fatalf("unexpected finals: %q", finals)
	}
}

func TestAggregatorHypothesisOnly(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Handle(domain.Result{Kind: domain.ResultHypothesis, Text: "partial"})
	agg.Handle(domain.Result{Kind: domain.ResultHypothesis, Text: "partial guess"})
	if got := agg.Text(); got != "partial guess" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestAggregatorIgnoresEmptyResults(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Handle(domain.Result{Kind: domain.ResultHypothesis, Text: "   "})
	agg.Handle(domain.Result{Kind: domain.ResultRecognized, Text: ""})
	if got := agg.Text(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if finals := agg.Finals(); len(finals) != 0 {
		t.Fatalf("expected no finals, got %q", finals)
	}
}
