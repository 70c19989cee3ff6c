package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GrantsGovProvider queries the Grants.gov search2 API by keyword.
type GrantsGovProvider struct {
	Client  *http.Client
	BaseURL string
	Rows    int
}

func NewGrantsGovProvider() *GrantsGovProvider {
	return &GrantsGovProvider{
		Client:  &http.Client{Timeout: 60 * time.Second},
		BaseURL: "https://api.grants.gov/v1/api/search2",
		Rows:    25,
	}
}

func (p *GrantsGovProvider) Name() string { return "grants.gov" }

type grantsGovSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

type grantsGovResponse struct {
	Data struct {
		HitCount int               `json:"hitCount"`
		OppHits  []grantsGovRecord `json:"oppHits"`
	} `json:"data"`
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
}

type grantsGovRecord struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	Title        string `json:"title"`
	Agency       string `json:"agency"`
	AgencyCode   string `json:"agencyCode"`
	OpenDate     string `json:"openDate"`
	CloseDate    string `json:"closeDate"`
	OppStatus    string `json:"oppStatus"`
	DocType      string `json:"docType"`
	AwardCeiling string `json:"awardCeiling"`
	AwardFloor   string `json:"awardFloor"`
}

func (p *GrantsGovProvider) Search(ctx context.Context, term string, opts SearchOptions) ([]RawHit, error) {
	statuses := "posted|forecasted"
	if opts.StatusFilter != "" {
		statuses = opts.StatusFilter
	}
	rows := p.Rows
	if opts.Limit > 0 {
		rows = opts.Limit
	}

	body, err := json.Marshal(grantsGovSearchRequest{
		Keyword:     term,
		OppStatuses: statuses,
		SortBy:      "openDate|desc",
		Rows:        rows,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
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

	var apiResp grantsGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if apiResp.ErrorCode != 0 {
		return nil, fmt.Errorf("API error: %s", apiResp.Msg)
	}

	hits := make([]RawHit, 0, len(apiResp.Data.OppHits))
	for _, rec := range apiResp.Data.OppHits {
		if rec.Title == "" {
			continue
		}
		hit := RawHit{
			SourceID:   rec.ID,
			Title:      rec.Title,
			Agency:     rec.Agency,
			Category:   rec.DocType,
			URL:        fmt.Sprintf("https://www.grants.gov/search-results-detail/%s", rec.ID),
			AmountRaw:  amountRange(rec.AwardFloor, rec.AwardCeiling),
			OpenDate:   parseDate(rec.OpenDate),  // MM/DD/YYYY
			CloseDate:  parseDate(rec.CloseDate), // MM/DD/YYYY
			Forecasted: strings.EqualFold(rec.OppStatus, "forecasted") || strings.EqualFold(rec.DocType, "forecast"),
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func amountRange(floor, ceiling string) string {
	floor = strings.TrimSpace(floor)
	ceiling = strings.TrimSpace(ceiling)
	switch {
	case floor != "" && ceiling != "":
		return fmt.Sprintf("$%s–$%s", floor, ceiling)
	case ceiling != "":
		return "$" + ceiling
	case floor != "":
		return "$" + floor
	default:
		return ""
	}
}
