package search

import (
	"context"
	"sort"
	"time"

	"github.com/david/grantscout/internal/models"
	"github.com/david/grantscout/internal/profile"
	"github.com/david/grantscout/internal/scoring"
	"go.uber.org/zap"
)

const defaultCallTimeout = 30 * time.Second

// ScanResult is everything a scan produced, including what went wrong.
// Partial results are always structurally valid.
type ScanResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Errors        []ProviderError      `json:"errors"`
	Partial       bool                 `json:"partial"`
	CallsTotal    int                  `json:"calls_total"`
	CallsDone     int                  `json:"calls_done"`
}

// Orchestrator fans profile-derived terms out to the configured registry
// providers, then merges, dedups, and scores whatever came back.
type Orchestrator struct {
	providers []Provider
	logger    *zap.Logger
}

func NewOrchestrator(providers []Provider, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{providers: providers, logger: logger}
}

// Scan runs every qualifying term against every provider, sequentially per
// term so later terms observe earlier dedup state and provider rate limits
// stay respected. A failed call is recorded and skipped; the scan finishes
// with whatever subset succeeded. Cancellation is honored between calls
// and yields a partial result, not an error.
func (o *Orchestrator) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	terms := filterTerms(req.Terms, req.TierLimit)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	result := &ScanResult{CallsTotal: len(terms) * len(o.providers)}

	seen := make(map[string]bool, len(req.KnownKeys))
	for k, known := range req.KnownKeys {
		if known {
			seen[k] = true
		}
	}

scan:
	for _, term := range terms {
		for _, p := range o.providers {
			if ctx.Err() != nil {
				result.Partial = true
				o.logger.Info("scan aborted",
					zap.Int("calls_done", result.CallsDone),
					zap.Int("calls_total", result.CallsTotal))
				break scan
			}

			callCtx, cancel := context.WithTimeout(ctx, timeout)
			hits, err := p.Search(callCtx, term.Keyword, req.Options)
			cancel()

			result.CallsDone++
			if err != nil {
				// Timeouts, non-2xx, malformed payloads: all recovered
				// locally so the rest of the scan proceeds.
				result.Errors = append(result.Errors, ProviderError{
					Provider: p.Name(),
					Term:     term.Keyword,
					Err:      err,
					Message:  err.Error(),
				})
				o.logger.Warn("provider call failed",
					zap.String("provider", p.Name()),
					zap.String("term", term.Keyword),
					zap.Error(err))
				o.reportProgress(req, result)
				continue
			}

			for _, hit := range hits {
				opp := normalizeHit(p.Name(), hit, time.Now().UTC())
				if opp.Title == "" {
					continue
				}

				key := opp.DedupKey()
				if seen[key] {
					continue
				}
				seen[key] = true

				fit := scoring.ScoreFit(scoringText(opp, term.Label), req.Weights)
				opp.FitScore = fit.Score
				opp.FitLabel = fit.Label
				opp.Matches = fit.Matches
				opp.Gaps = fit.Gaps

				result.Opportunities = append(result.Opportunities, opp)
			}

			o.reportProgress(req, result)
		}
	}

	sort.SliceStable(result.Opportunities, func(i, j int) bool {
		a, b := result.Opportunities[i], result.Opportunities[j]
		if a.FitScore != b.FitScore {
			return a.FitScore > b.FitScore
		}
		return models.NormalizeTitle(a.Title) < models.NormalizeTitle(b.Title)
	})

	o.logger.Info("scan complete",
		zap.Int("opportunities", len(result.Opportunities)),
		zap.Int("errors", len(result.Errors)),
		zap.Bool("partial", result.Partial))

	if len(result.Opportunities) == 0 && !result.Partial {
		return result, ErrNoResults
	}
	return result, nil
}

func (o *Orchestrator) reportProgress(req ScanRequest, result *ScanResult) {
	if req.Progress != nil {
		req.Progress(result.CallsDone, result.CallsTotal)
	}
}

func filterTerms(terms []profile.SearchTerm, tierLimit int) []profile.SearchTerm {
	if tierLimit <= TierAll || tierLimit >= 3 {
		return terms
	}
	out := make([]profile.SearchTerm, 0, len(terms))
	for _, t := range terms {
		if t.Tier <= tierLimit {
			out = append(out, t)
		}
	}
	return out
}
