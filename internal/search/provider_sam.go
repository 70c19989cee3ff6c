package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SAMProvider queries the SAM.gov opportunities API by title keyword.
// Requires an API key; without one the provider reports a normal call
// failure and the scan moves on.
type SAMProvider struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
	Limit   int
}

func NewSAMProvider(apiKey string) *SAMProvider {
	return &SAMProvider{
		Client:  &http.Client{Timeout: 60 * time.Second},
		BaseURL: "https://api.sam.gov/opportunities/v2/search",
		APIKey:  apiKey,
		Limit:   25,
	}
}

func (p *SAMProvider) Name() string { return "sam.gov" }

type samResponse struct {
	TotalRecords      int         `json:"totalRecords"`
	OpportunitiesData []samRecord `json:"opportunitiesData"`
}

type samRecord struct {
	NoticeID         string `json:"noticeId"`
	Title            string `json:"title"`
	FullParentPathN  string `json:"fullParentPathName"`
	Type             string `json:"type"`
	PostedDate       string `json:"postedDate"`       // YYYY-MM-DD
	ResponseDeadline string `json:"responseDeadLine"` // RFC3339-ish
	UILink           string `json:"uiLink"`
	Award            struct {
		Amount string `json:"amount"`
	} `json:"award"`
}

func (p *SAMProvider) Search(ctx context.Context, term string, opts SearchOptions) ([]RawHit, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("missing SAM_API_KEY")
	}
	limit := p.Limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	q := url.Values{}
	q.Set("api_key", p.APIKey)
	q.Set("title", term)
	q.Set("limit", fmt.Sprintf("%d", limit))
	// The API requires a posted-date window; a trailing year is plenty for
	// keyword discovery.
	now := time.Now().UTC()
	q.Set("postedFrom", now.AddDate(-1, 0, 0).Format("01/02/2006"))
	q.Set("postedTo", now.Format("01/02/2006"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(snippet))
	}

	var apiResp samResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	hits := make([]RawHit, 0, len(apiResp.OpportunitiesData))
	for _, rec := range apiResp.OpportunitiesData {
		if rec.Title == "" {
			continue
		}
		hits = append(hits, RawHit{
			SourceID:  rec.NoticeID,
			Title:     rec.Title,
			Agency:    rec.FullParentPathN,
			Category:  rec.Type,
			URL:       rec.UILink,
			AmountRaw: rec.Award.Amount,
			OpenDate:  parseDate(rec.PostedDate),
			CloseDate: parseDate(rec.ResponseDeadline),
		})
	}
	return hits, nil
}
