package search

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/grantscout/internal/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// htmlToText strips markup and collapses whitespace. Registry payloads mix
// plain text and HTML fragments freely.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return normalizeSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(stripPolicy.Sanitize(s)))
	if err != nil {
		return normalizeSpace(s)
	}
	return normalizeSpace(doc.Text())
}

// normalizeSpace collapses runs of whitespace into single spaces and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sanitizeUTF8 removes invalid byte sequences before anything downstream
// persists the value.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// normalizeHit converts a provider hit into the canonical opportunity
// shape, minus scoring. The caller attaches fit evidence afterwards.
func normalizeHit(providerName string, hit RawHit, now time.Time) models.Opportunity {
	return models.Opportunity{
		ID:          uuid.New(),
		SourceID:    strings.TrimSpace(hit.SourceID),
		Provider:    providerName,
		Title:       sanitizeUTF8(htmlToText(hit.Title)),
		AgencyName:  sanitizeUTF8(htmlToText(hit.Agency)),
		Category:    sanitizeUTF8(htmlToText(hit.Category)),
		ExternalURL: strings.TrimSpace(hit.URL),
		AmountRaw:   sanitizeUTF8(normalizeSpace(hit.AmountRaw)),
		OpenDate:    hit.OpenDate,
		CloseDate:   hit.CloseDate,
		Forecasted:  hit.Forecasted,
		Stage:       models.StageResearching,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// scoringText is the evidence surface the fit scorer sees for a hit:
// title, agency, and category-derived label concatenated.
func scoringText(opp models.Opportunity, termLabel string) string {
	parts := []string{opp.Title, opp.AgencyName, opp.Category, termLabel}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// parseDate tries the formats the supported registries actually emit.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	layouts := []string{
		"01/02/2006",
		"2006-01-02",
		time.RFC3339,
		"Jan 2, 2006",
		"January 2, 2006",
		"2 January 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
