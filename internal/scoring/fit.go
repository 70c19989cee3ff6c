package scoring

import (
	"math"
	"strings"

	"github.com/david/grantscout/internal/models"
	"github.com/david/grantscout/internal/profile"
)

const (
	baseScore = 20
	minScore  = 5
	maxScore  = 98

	// Each extra co-occurring phrase in the same category adds 20% of the
	// base magnitude, capped at 1.8x. Diminishing returns keep one
	// saturated category from dominating the score.
	perPhraseFactor = 0.2
	boostCap        = 1.8

	densityBonus     = 5.0
	densityThreshold = 2.0 // matched phrases per 100 words
)

// FitResult is the outcome of scoring one text against a weight set.
type FitResult struct {
	Score   int               `json:"score"`
	Label   string            `json:"label"`
	Matches []models.Evidence `json:"matches"`
	Gaps    []models.Evidence `json:"gaps"`
}

// ScoreFit rates how well free text matches the profile-derived weights.
// Pure and side-effect free: it ranks freshly discovered opportunities and
// ad-hoc pasted text alike. The score is always within [5, 98].
func ScoreFit(text string, weights []profile.ScoringWeight) FitResult {
	lower := strings.ToLower(text)
	score := float64(baseScore)
	totalFound := 0

	var matches, gaps []models.Evidence
	for _, w := range weights {
		var found []string
		for _, kw := range w.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				found = append(found, kw)
			}
		}
		if len(found) == 0 {
			continue
		}

		factor := 1 + float64(len(found))*perPhraseFactor
		if factor > boostCap {
			factor = boostCap
		}
		boost := float64(w.Weight) * factor
		score += boost
		totalFound += len(found)

		ev := models.Evidence{Category: w.Category, Phrases: found, Boost: boost}
		if w.Weight >= 0 {
			matches = append(matches, ev)
		} else {
			gaps = append(gaps, ev)
		}
	}

	// Reward texts saturated with relevant terminology over texts that
	// merely mention a term once.
	words := len(strings.Fields(text))
	if words > 0 && float64(totalFound)/float64(words)*100 > densityThreshold {
		score += densityBonus
	}

	final := int(math.Round(score))
	if final < minScore {
		final = minScore
	}
	if final > maxScore {
		final = maxScore
	}

	return FitResult{
		Score:   final,
		Label:   Classify(final),
		Matches: matches,
		Gaps:    gaps,
	}
}

// Classify buckets a fit score for display. Display only: no scoring
// decision depends on the label.
func Classify(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 65:
		return "strong"
	case score >= 50:
		return "moderate"
	case score >= 35:
		return "possible"
	default:
		return "low"
	}
}
