package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/grantscout/internal/profile"
)

// RawHit is a provider's untrusted view of one opportunity. Providers map
// their bespoke response shapes into this before normalization.
type RawHit struct {
	SourceID   string
	Title      string
	Agency     string
	Category   string
	URL        string
	AmountRaw  string
	OpenDate   *time.Time
	CloseDate  *time.Time
	Forecasted bool
}

// SearchOptions are per-call provider knobs.
type SearchOptions struct {
	StatusFilter string // provider-specific, e.g. "posted" or "forecasted"
	Limit        int    // max hits per term, 0 = provider default
}

// Provider is one external opportunity registry queried by keyword. New
// registries plug in here without touching orchestration or scoring.
type Provider interface {
	Name() string
	Search(ctx context.Context, term string, opts SearchOptions) ([]RawHit, error)
}

// ProviderError records a single failed provider/term call. Failures are
// data in the scan result, never a reason to abort the scan.
type ProviderError struct {
	Provider string `json:"provider"`
	Term     string `json:"term"`
	Err      error  `json:"-"`
	Message  string `json:"message"`
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("%s (%q): %v", e.Provider, e.Term, e.Err)
}

func (e ProviderError) Unwrap() error { return e.Err }

// ErrNoResults marks a scan whose providers all answered with nothing.
// A user-visible "broaden your terms" condition, not a failure.
var ErrNoResults = errors.New("scan produced no opportunities")

// TierAll runs every qualifying term regardless of tier.
const TierAll = 0

// ScanRequest describes one discovery scan.
type ScanRequest struct {
	Terms     []profile.SearchTerm
	Weights   []profile.ScoringWeight
	TierLimit int             // 1..3, or TierAll
	KnownKeys map[string]bool // dedup keys already tracked in the pipeline
	Timeout   time.Duration   // per provider call, default 30s
	Options   SearchOptions
	// Progress is invoked after every (term, provider) call with completed
	// and total counts. Optional; must not block for long.
	Progress func(done, total int)
}
