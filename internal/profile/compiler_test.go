package profile

import (
	"reflect"
	"testing"
)

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler: %v", err)
	}
	return c
}

func TestCompileDeterministic(t *testing.T) {
	c := newTestCompiler(t)

	a := c.Compile([]string{"veteran"}, []string{"technology"})
	b := c.Compile([]string{"veteran"}, []string{"technology"})

	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical derivations for identical input")
	}
	if len(a.SearchTerms) == 0 || len(a.Weights) == 0 {
		t.Fatal("expected non-empty terms and weights")
	}
}

func TestCompileBlankProfileFallsBack(t *testing.T) {
	c := newTestCompiler(t)

	tests := []struct {
		name    string
		tags    []string
		sectors []string
	}{
		{"empty", nil, nil},
		{"unknown ids", []string{"zeppelin"}, []string{"submarines"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Compile(tt.tags, tt.sectors)
			if len(d.SearchTerms) == 0 {
				t.Fatal("expected fallback search terms")
			}
			if len(d.Weights) == 0 {
				t.Fatal("expected fallback weights")
			}
			for _, term := range d.SearchTerms {
				if term.Tier != 1 {
					t.Errorf("fallback term %q has tier %d, want 1", term.Keyword, term.Tier)
				}
			}
			if !hasCategory(d.Weights, "General Funding Fit") {
				t.Error("expected generic fallback weight")
			}
		})
	}
}

func TestCompileGapRulesRespectPresentTags(t *testing.T) {
	c := newTestCompiler(t)

	d := c.Compile([]string{"veteran"}, []string{"technology"})

	if hasCategory(d.Weights, "Veteran-Only Programs") {
		t.Error("veteran gap penalty should be skipped when the veteran tag is present")
	}
	if !hasCategory(d.Weights, "Women-Only Programs") {
		t.Error("women-only gap penalty should be added when the tag is absent")
	}
	if !hasCategory(d.Weights, "Academic & Institutional Only") {
		t.Error("academic-only penalty is universal and must always be present")
	}
	if !hasCategory(d.Weights, "Workforce & Local Economy") {
		t.Error("workforce weight must always be present")
	}
	if !hasCategory(d.Weights, "Research & Innovation") {
		t.Error("technology sector should trigger the research affinity weight")
	}
}

func TestCompileTierEscalation(t *testing.T) {
	c := newTestCompiler(t)

	// Enough tags and sectors to overflow tier 1 and tier 2.
	d := c.Compile(
		[]string{"veteran", "women-owned", "nonprofit", "rural"},
		[]string{"technology", "agriculture", "healthcare"},
	)

	if len(d.SearchTerms) <= 12 {
		t.Fatalf("expected more than 12 terms, got %d", len(d.SearchTerms))
	}
	for i, term := range d.SearchTerms {
		want := 1 + i/6
		if want > 3 {
			want = 3
		}
		if term.Tier != want {
			t.Fatalf("term %d (%q): tier %d, want %d", i, term.Keyword, term.Tier, want)
		}
	}
}

func TestCompileDedupsPhrasesAcrossEntries(t *testing.T) {
	c := newTestCompiler(t)

	d := c.Compile([]string{"veteran", "veteran"}, nil)

	seen := map[string]bool{}
	for _, term := range d.SearchTerms {
		if seen[term.Keyword] {
			t.Fatalf("duplicate search term %q", term.Keyword)
		}
		seen[term.Keyword] = true
	}
}

func TestCompileMemoReturnsIndependentCopies(t *testing.T) {
	c := newTestCompiler(t)

	a := c.Compile([]string{"veteran"}, nil)
	a.SearchTerms[0].Keyword = "mutated"

	b := c.Compile([]string{"veteran"}, nil)
	if b.SearchTerms[0].Keyword == "mutated" {
		t.Fatal("memoized derivation leaked a mutable reference")
	}
}

func TestCompileMemoKeysDistinguishCollidingInputs(t *testing.T) {
	c := newTestCompiler(t)

	// Tags are free-form user input: a single "veteran,rural" tag is not
	// in the taxonomy and must fall back, never inherit the cached
	// derivation for the two separate tags.
	real := c.Compile([]string{"veteran", "rural"}, nil)
	if hasCategory(real.Weights, "General Funding Fit") {
		t.Fatal("known tags must not produce the fallback weight")
	}

	bogus := c.Compile([]string{"veteran,rural"}, nil)
	if !hasCategory(bogus.Weights, "General Funding Fit") {
		t.Fatal("unknown tag reused a colliding cache entry instead of falling back")
	}

	// Same shape across the tags|sectors boundary.
	asTag := c.Compile([]string{"technology"}, nil)
	asSector := c.Compile(nil, []string{"technology"})
	if !hasCategory(asTag.Weights, "General Funding Fit") {
		t.Fatal("technology is a sector, not a tag; expected fallback")
	}
	if hasCategory(asSector.Weights, "General Funding Fit") {
		t.Fatal("technology sector must not reuse the tag-side cache entry")
	}
}

func TestCompileMemoDeepCopiesKeywordSlices(t *testing.T) {
	c := newTestCompiler(t)

	a := c.Compile([]string{"veteran"}, nil)
	original := a.Weights[0].Keywords[0]
	a.Weights[0].Keywords[0] = "mutated"

	b := c.Compile([]string{"veteran"}, nil)
	if b.Weights[0].Keywords[0] != original {
		t.Fatalf("keyword slice aliases the cache: got %q, want %q",
			b.Weights[0].Keywords[0], original)
	}
}

func hasCategory(weights []ScoringWeight, category string) bool {
	for _, w := range weights {
		if w.Category == category {
			return true
		}
	}
	return false
}
