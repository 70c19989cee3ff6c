package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// ListingSelectors are the CSS selectors that locate opportunity entries on
// a registry's HTML listing page.
type ListingSelectors struct {
	Container string `yaml:"container"`
	Title     string `yaml:"title"`
	Link      string `yaml:"link"`
	Agency    string `yaml:"agency,omitempty"`
	Amount    string `yaml:"amount,omitempty"`
	Deadline  string `yaml:"deadline,omitempty"`
}

// HTMLProvider scrapes a registry that publishes opportunities only as an
// HTML listing page. The whole listing is fetched per call and matched
// against the term client-side, since these sites rarely offer search.
type HTMLProvider struct {
	ProviderName string
	ListURL      string
	Selectors    ListingSelectors
	UserAgent    string
	MaxBodySize  int
}

func NewHTMLProvider(name, listURL string, selectors ListingSelectors) *HTMLProvider {
	return &HTMLProvider{
		ProviderName: name,
		ListURL:      listURL,
		Selectors:    selectors,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxBodySize:  10 * 1024 * 1024,
	}
}

func (p *HTMLProvider) Name() string { return p.ProviderName }

func (p *HTMLProvider) Search(ctx context.Context, term string, opts SearchOptions) ([]RawHit, error) {
	base, err := url.Parse(p.ListURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing URL: %w", err)
	}

	c := colly.NewCollector(
		colly.UserAgent(p.UserAgent),
		colly.MaxBodySize(p.MaxBodySize),
		colly.AllowedDomains(base.Host),
		colly.AllowURLRevisit(),
	)
	c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: time.Second})
	if deadline, ok := ctx.Deadline(); ok {
		c.SetRequestTimeout(time.Until(deadline))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	termLower := strings.ToLower(term)
	limit := opts.Limit

	var hits []RawHit
	var scrapeErr error

	c.OnHTML(p.Selectors.Container, func(e *colly.HTMLElement) {
		if limit > 0 && len(hits) >= limit {
			return
		}

		title := normalizeSpace(e.ChildText(p.Selectors.Title))
		if title == "" || !strings.Contains(strings.ToLower(title), termLower) {
			return
		}

		link := e.ChildAttr(p.Selectors.Link, "href")
		if link != "" {
			link = e.Request.AbsoluteURL(link)
		}

		hit := RawHit{
			Title: title,
			URL:   link,
		}
		if p.Selectors.Agency != "" {
			hit.Agency = normalizeSpace(e.ChildText(p.Selectors.Agency))
		}
		if p.Selectors.Amount != "" {
			hit.AmountRaw = normalizeSpace(e.ChildText(p.Selectors.Amount))
		}
		if p.Selectors.Deadline != "" {
			hit.CloseDate = parseDate(e.ChildText(p.Selectors.Deadline))
		}
		hits = append(hits, hit)
	})

	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("fetching %s: %w", r.Request.URL, err)
	})

	if err := c.Visit(p.ListURL); err != nil {
		return nil, fmt.Errorf("visiting listing: %w", err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return hits, nil
}
