package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AwardIntel summarizes past federal award activity for an agency: how
// crowded its programs run. Feeds value planning as context, never fit
// scoring.
type AwardIntel struct {
	Agency     string `json:"agency"`
	AwardCount int    `json:"award_count"`
}

// AreaProfile is a coarse demographic snapshot of the applicant's state,
// used to ground workforce and job-creation framing.
type AreaProfile struct {
	State          string `json:"state"`
	Establishments int    `json:"establishments"`
	Employment     int    `json:"employment"`
}

// Intel bundles the independent lookups. Either field may be nil when its
// source failed; partial intel is still useful.
type Intel struct {
	Awards *AwardIntel  `json:"awards,omitempty"`
	Area   *AreaProfile `json:"area,omitempty"`
}

// IntelClient fetches competitive-award and demographic context. The two
// sources are independent, share no mutable state, and are queried
// concurrently; a failure in one never blocks the other.
type IntelClient struct {
	Client      *http.Client
	SpendingURL string
	CensusURL   string
	Logger      *zap.Logger
}

func NewIntelClient(logger *zap.Logger) *IntelClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntelClient{
		Client:      &http.Client{Timeout: 30 * time.Second},
		SpendingURL: "https://api.usaspending.gov/api/v2/search/spending_by_award_count/",
		CensusURL:   "https://api.census.gov/data/2022/cbp",
		Logger:      logger,
	}
}

// Fetch runs both lookups concurrently and merges whatever succeeded.
func (c *IntelClient) Fetch(ctx context.Context, agency, stateFIPS string) *Intel {
	intel := &Intel{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		awards, err := c.fetchAwards(gctx, agency)
		if err != nil {
			c.Logger.Warn("award intel lookup failed", zap.String("agency", agency), zap.Error(err))
			return nil
		}
		intel.Awards = awards
		return nil
	})

	g.Go(func() error {
		area, err := c.fetchArea(gctx, stateFIPS)
		if err != nil {
			c.Logger.Warn("area profile lookup failed", zap.String("state", stateFIPS), zap.Error(err))
			return nil
		}
		intel.Area = area
		return nil
	})

	// Errors are swallowed above; Wait only synchronizes.
	_ = g.Wait()
	return intel
}

type spendingRequest struct {
	Filters spendingFilters `json:"filters"`
}

type spendingFilters struct {
	Keywords []string `json:"keywords"`
}

type spendingResponse struct {
	Results map[string]int `json:"results"`
}

func (c *IntelClient) fetchAwards(ctx context.Context, agency string) (*AwardIntel, error) {
	if agency == "" {
		return nil, fmt.Errorf("no agency to query")
	}

	body, err := json.Marshal(spendingRequest{Filters: spendingFilters{Keywords: []string{agency}}})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SpendingURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(snippet))
	}

	var apiResp spendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	total := 0
	for _, count := range apiResp.Results {
		total += count
	}
	return &AwardIntel{Agency: agency, AwardCount: total}, nil
}

func (c *IntelClient) fetchArea(ctx context.Context, stateFIPS string) (*AreaProfile, error) {
	if stateFIPS == "" {
		return nil, fmt.Errorf("no state to query")
	}

	url := fmt.Sprintf("%s?get=ESTAB,EMP&for=state:%s", c.CensusURL, stateFIPS)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d", resp.StatusCode)
	}

	// Census responses are positional string arrays, header row first.
	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(rows) < 2 || len(rows[1]) < 2 {
		return nil, fmt.Errorf("unexpected response shape")
	}

	estab, _ := strconv.Atoi(rows[1][0])
	emp, _ := strconv.Atoi(rows[1][1])
	return &AreaProfile{State: stateFIPS, Establishments: estab, Employment: emp}, nil
}
