package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/david/grantscout/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name  string
	hits  map[string][]RawHit
	fail  map[string]error
	calls []string
	delay time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, term string, _ SearchOptions) ([]RawHit, error) {
	f.calls = append(f.calls, term)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err, ok := f.fail[term]; ok {
		return nil, err
	}
	return f.hits[term], nil
}

func terms(keywords ...string) []profile.SearchTerm {
	out := make([]profile.SearchTerm, 0, len(keywords))
	for i, kw := range keywords {
		out = append(out, profile.SearchTerm{Keyword: kw, Label: "Test", Tier: 1 + i/6})
	}
	return out
}

func matchWeights(phrases ...string) []profile.ScoringWeight {
	return []profile.ScoringWeight{{
		Keywords: phrases,
		Weight:   15,
		Category: "Test",
		Kind:     profile.KindMatch,
	}}
}

func TestScanDedupsWithinOneScan(t *testing.T) {
	hit := RawHit{SourceID: "GG-1", Title: "Rural Technology Grant"}
	p := &fakeProvider{
		name: "grants.gov",
		hits: map[string][]RawHit{
			"technology": {hit},
			"rural":      {hit}, // same opportunity surfaces for both terms
		},
	}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:   terms("technology", "rural"),
		Weights: matchWeights("technology"),
	})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "GG-1", res.Opportunities[0].SourceID)
}

func TestScanDedupsByNormalizedTitleWhenNoSourceID(t *testing.T) {
	p := &fakeProvider{
		name: "rd.usda.gov",
		hits: map[string][]RawHit{
			"grant": {
				{Title: "Value-Added  Producer Grant"},
				{Title: "value-added producer grant"},
			},
		},
	}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:   terms("grant"),
		Weights: matchWeights("grant"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Opportunities, 1)
}

func TestScanSkipsOpportunitiesAlreadyInPipeline(t *testing.T) {
	p := &fakeProvider{
		name: "grants.gov",
		hits: map[string][]RawHit{
			"technology": {
				{SourceID: "GG-1", Title: "Already tracked"},
				{SourceID: "GG-2", Title: "Fresh discovery"},
			},
		},
	}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:     terms("technology"),
		Weights:   matchWeights("technology"),
		KnownKeys: map[string]bool{"grants.gov:GG-1": true},
	})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "GG-2", res.Opportunities[0].SourceID)
}

func TestScanPartialFailureContinues(t *testing.T) {
	p := &fakeProvider{
		name: "grants.gov",
		hits: map[string][]RawHit{
			"alpha": {{SourceID: "A", Title: "Alpha award"}},
			"delta": {{SourceID: "D", Title: "Delta award"}},
			"echo":  {{SourceID: "E", Title: "Echo award"}},
		},
		fail: map[string]error{
			"bravo":   errors.New("503 service unavailable"),
			"charlie": context.DeadlineExceeded,
		},
	}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:   terms("alpha", "bravo", "charlie", "delta", "echo"),
		Weights: matchWeights("award"),
	})
	require.NoError(t, err, "provider failures must not escape the orchestrator")
	assert.Len(t, res.Opportunities, 3)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "bravo", res.Errors[0].Term)
	assert.Equal(t, "charlie", res.Errors[1].Term)
	assert.False(t, res.Partial)
	assert.Equal(t, 5, res.CallsDone)
}

func TestScanTierLimitFiltersTerms(t *testing.T) {
	p := &fakeProvider{name: "grants.gov", hits: map[string][]RawHit{}}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	allTerms := terms("t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8") // tiers 1..2

	_, err := o.Scan(context.Background(), ScanRequest{
		Terms:     allTerms,
		Weights:   matchWeights("x"),
		TierLimit: 1,
	})
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Len(t, p.calls, 6, "only tier-1 terms should run")
}

func TestScanSortsByFitDescending(t *testing.T) {
	p := &fakeProvider{
		name: "grants.gov",
		hits: map[string][]RawHit{
			"technology": {
				{SourceID: "WEAK", Title: "Road resurfacing notice"},
				{SourceID: "STRONG", Title: "Technology innovation technology grant"},
			},
		},
	}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:   terms("technology"),
		Weights: matchWeights("technology", "innovation"),
	})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 2)
	assert.Equal(t, "STRONG", res.Opportunities[0].SourceID)
	assert.GreaterOrEqual(t, res.Opportunities[0].FitScore, res.Opportunities[1].FitScore)
}

func TestScanEqualFitBreaksTiesByTitle(t *testing.T) {
	p := &fakeProvider{
		name: "grants.gov",
		hits: map[string][]RawHit{
			"grant": {
				{SourceID: "Z", Title: "zoning improvement grant"},
				{SourceID: "A", Title: "Agricultural Improvement Grant"},
			},
		},
	}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:   terms("grant"),
		Weights: matchWeights("grant"),
	})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 2)
	assert.Equal(t, res.Opportunities[0].FitScore, res.Opportunities[1].FitScore)
	assert.Equal(t, "A", res.Opportunities[0].SourceID)
	assert.Equal(t, "Z", res.Opportunities[1].SourceID)
}

func TestScanCancellationReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &fakeProvider{
		name: "grants.gov",
		hits: map[string][]RawHit{
			"first":  {{SourceID: "F", Title: "First award"}},
			"second": {{SourceID: "S", Title: "Second award"}},
		},
	}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	progress := func(done, total int) {
		if done == 1 {
			cancel()
		}
	}

	res, err := o.Scan(ctx, ScanRequest{
		Terms:    terms("first", "second"),
		Weights:  matchWeights("award"),
		Progress: progress,
	})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Len(t, res.Opportunities, 1)
	assert.Equal(t, 1, res.CallsDone)
}

func TestScanNoResultsSurfacesCondition(t *testing.T) {
	p := &fakeProvider{name: "grants.gov", hits: map[string][]RawHit{}}
	o := NewOrchestrator([]Provider{p}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:   terms("obscure"),
		Weights: matchWeights("x"),
	})
	assert.ErrorIs(t, err, ErrNoResults)
	require.NotNil(t, res, "even an empty scan returns a structurally valid result")
	assert.Empty(t, res.Opportunities)
}

func TestScanProgressReporting(t *testing.T) {
	p1 := &fakeProvider{name: "grants.gov", hits: map[string][]RawHit{}}
	p2 := &fakeProvider{name: "sam.gov", hits: map[string][]RawHit{}}
	o := NewOrchestrator([]Provider{p1, p2}, zap.NewNop())

	var reports []string
	_, _ = o.Scan(context.Background(), ScanRequest{
		Terms:   terms("a", "b"),
		Weights: matchWeights("x"),
		Progress: func(done, total int) {
			reports = append(reports, fmt.Sprintf("%d/%d", done, total))
		},
	})

	assert.Equal(t, []string{"1/4", "2/4", "3/4", "4/4"}, reports)
}

func TestScanTimeoutTreatedAsProviderFailure(t *testing.T) {
	slow := &fakeProvider{
		name:  "slow.gov",
		delay: 200 * time.Millisecond,
		hits:  map[string][]RawHit{"term": {{SourceID: "X", Title: "Too slow"}}},
	}
	fast := &fakeProvider{
		name: "grants.gov",
		hits: map[string][]RawHit{"term": {{SourceID: "Y", Title: "Fast enough"}}},
	}
	o := NewOrchestrator([]Provider{slow, fast}, zap.NewNop())

	res, err := o.Scan(context.Background(), ScanRequest{
		Terms:   terms("term"),
		Weights: matchWeights("fast"),
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "slow.gov", res.Errors[0].Provider)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "Y", res.Opportunities[0].SourceID)
	assert.False(t, res.Partial)
}
