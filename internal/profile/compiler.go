package profile

import (
	"strconv"
	"strings"
	"sync"
)

// SearchTerm is one weighted query phrase. Tier governs fan-out: tier 1
// terms run on every scan, tier 3 only on a full scan.
type SearchTerm struct {
	Keyword string `json:"keyword"`
	Label   string `json:"label"`
	Tier    int    `json:"tier"` // 1..3
}

// WeightKind separates positive evidence from exclusion penalties.
type WeightKind string

const (
	KindMatch WeightKind = "match"
	KindGap   WeightKind = "gap"
)

// ScoringWeight is one evidence rule for the fit scorer.
type ScoringWeight struct {
	Keywords []string   `json:"keywords"`
	Weight   int        `json:"weight"` // signed magnitude
	Category string     `json:"category"`
	Kind     WeightKind `json:"kind"`
}

// Derived is the compiler output: everything downstream search and scoring
// needs, regenerated whenever the profile's tags or sectors change.
type Derived struct {
	SearchTerms []SearchTerm    `json:"search_terms"`
	Weights     []ScoringWeight `json:"weights"`
}

// tier1Cap is how many distinct phrases land in tier 1 before escalation.
const tier1Cap = 6

// Compiler turns profile tags and sectors into weighted search terms and
// scoring weights. Derivation is a pure function of (tags, sectors); the
// compiler memoizes it per input so repeated scans don't redo the work.
type Compiler struct {
	tax *Taxonomy

	mu    sync.Mutex
	cache map[string]Derived
}

// NewCompiler loads the embedded taxonomy.
func NewCompiler() (*Compiler, error) {
	tax, err := LoadTaxonomy("")
	if err != nil {
		return nil, err
	}
	return NewCompilerWithTaxonomy(tax), nil
}

// NewCompilerWithTaxonomy is the injection point for tests and for callers
// that load an edited taxonomy from disk.
func NewCompilerWithTaxonomy(tax *Taxonomy) *Compiler {
	return &Compiler{tax: tax, cache: make(map[string]Derived)}
}

// Compile returns the derived terms and weights for the given profile tags
// and sectors. Deterministic and order-stable; never returns empty lists.
func (c *Compiler) Compile(tags, sectors []string) Derived {
	key := memoKey(tags, sectors)

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return cloneDerived(cached)
	}

	derived := c.derive(tags, sectors)

	c.mu.Lock()
	c.cache[key] = derived
	c.mu.Unlock()

	return cloneDerived(derived)
}

func (c *Compiler) derive(tags, sectors []string) Derived {
	var (
		terms   []SearchTerm
		weights []ScoringWeight
		seen    = make(map[string]struct{})
	)

	appendTerms := func(e *Entry) {
		for _, phrase := range e.Phrases {
			k := strings.ToLower(strings.TrimSpace(phrase))
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			terms = append(terms, SearchTerm{
				Keyword: phrase,
				Label:   e.Label,
				Tier:    tierFor(len(terms)),
			})
		}
	}

	// Tags first, then sectors: the tier escalation order is deliberate,
	// eligibility phrases are better discovery queries than industry ones.
	researchAffinity := false
	for _, id := range tags {
		entry := c.tax.tagByID(normalizeID(id))
		if entry == nil {
			continue
		}
		appendTerms(entry)
		weights = append(weights, ScoringWeight{
			Keywords: entry.Phrases,
			Weight:   entry.Weight,
			Category: entry.Label,
			Kind:     KindMatch,
		})
	}
	for _, id := range sectors {
		entry := c.tax.sectorByID(normalizeID(id))
		if entry == nil {
			continue
		}
		appendTerms(entry)
		weights = append(weights, ScoringWeight{
			Keywords: entry.Phrases,
			Weight:   entry.Weight,
			Category: entry.Label,
			Kind:     KindMatch,
		})
		if entry.ResearchAffinity {
			researchAffinity = true
		}
	}

	// Blank or unrecognized profile: substitute the generic fallback so
	// downstream components never operate on empty input.
	if len(terms) == 0 {
		for _, t := range c.tax.Fallback.Terms {
			terms = append(terms, SearchTerm{Keyword: t, Label: c.tax.Fallback.Label, Tier: 1})
		}
		fw := c.tax.Fallback.Weight
		weights = append(weights, ScoringWeight{
			Keywords: fw.Phrases,
			Weight:   fw.Weight,
			Category: fw.Category,
			Kind:     KindMatch,
		})
	}

	if researchAffinity {
		weights = append(weights, ScoringWeight{
			Keywords: c.tax.Research.Phrases,
			Weight:   c.tax.Research.Weight,
			Category: c.tax.Research.Category,
			Kind:     KindMatch,
		})
	}

	// Workforce weight is unconditional: funders commonly require
	// job-creation language whatever the applicant's tags are.
	weights = append(weights, ScoringWeight{
		Keywords: c.tax.Location.Phrases,
		Weight:   c.tax.Location.Weight,
		Category: c.tax.Location.Category,
		Kind:     KindMatch,
	})

	tagSet := make(map[string]struct{}, len(tags))
	for _, id := range tags {
		tagSet[normalizeID(id)] = struct{}{}
	}
	for _, rule := range c.tax.GapRules {
		if _, has := tagSet[rule.Tag]; has {
			continue
		}
		weights = append(weights, ScoringWeight{
			Keywords: rule.Phrases,
			Weight:   rule.Weight,
			Category: rule.Category,
			Kind:     KindGap,
		})
	}
	for _, rule := range c.tax.UniversalGaps {
		weights = append(weights, ScoringWeight{
			Keywords: rule.Phrases,
			Weight:   rule.Weight,
			Category: rule.Category,
			Kind:     KindGap,
		})
	}

	return Derived{SearchTerms: terms, Weights: weights}
}

// tierFor escalates 1 → 2 → 3 every tier1Cap distinct terms.
func tierFor(appended int) int {
	tier := 1 + appended/tier1Cap
	if tier > 3 {
		tier = 3
	}
	return tier
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// memoKey encodes the input lists collision-proof: every element is
// length-prefixed, so free-form tags like ["veteran","rural"] and
// ["veteran,rural"] can never share a cache entry.
func memoKey(tags, sectors []string) string {
	var b strings.Builder
	encode := func(ids []string) {
		for _, id := range ids {
			id = normalizeID(id)
			b.WriteString(strconv.Itoa(len(id)))
			b.WriteByte(':')
			b.WriteString(id)
		}
	}
	encode(tags)
	b.WriteByte('|')
	encode(sectors)
	return b.String()
}

// cloneDerived copies down to the keyword slices: the cached derivation
// aliases the taxonomy's phrase lists, and a caller mutating a returned
// keyword must not corrupt the cache or the taxonomy.
func cloneDerived(d Derived) Derived {
	out := Derived{
		SearchTerms: make([]SearchTerm, len(d.SearchTerms)),
		Weights:     make([]ScoringWeight, len(d.Weights)),
	}
	copy(out.SearchTerms, d.SearchTerms)
	for i, w := range d.Weights {
		w.Keywords = append([]string(nil), w.Keywords...)
		out.Weights[i] = w
	}
	return out
}
