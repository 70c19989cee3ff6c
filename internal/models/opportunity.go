package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage is the lifecycle position of a tracked opportunity in the user's
// pipeline. Transitions are owned by the store; the engine only reads them.
type Stage string

const (
	StageResearching Stage = "researching"
	StageQualifying  Stage = "qualifying"
	StagePreparing   Stage = "preparing"
	StageDrafting    Stage = "drafting"
	StageSubmitted   Stage = "submitted"
	StageCompleted   Stage = "completed"
	StageRejected    Stage = "rejected"
)

// Terminal reports whether the stage is an end state. Terminal
// opportunities are excluded from planning and action ranking.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageRejected
}

// Evidence records why a scoring weight fired against an opportunity.
type Evidence struct {
	Category string   `json:"category"`
	Phrases  []string `json:"phrases"`
	Boost    float64  `json:"boost"`
}

type Opportunity struct {
	ID          uuid.UUID  `json:"id"`
	SourceID    string     `json:"source_id"` // external id qualified by Provider
	Provider    string     `json:"provider"`
	Title       string     `json:"title"`
	AgencyName  string     `json:"agency_name"`
	Category    string     `json:"category"`
	ExternalURL string     `json:"external_url"`
	AmountRaw   string     `json:"amount_raw"` // free text, e.g. "$25,000–$50,000"
	OpenDate    *time.Time `json:"open_date"`
	CloseDate   *time.Time `json:"close_date"`
	Forecasted  bool       `json:"forecasted"`

	FitScore int        `json:"fit_score"` // 5..98
	FitLabel string     `json:"fit_label"`
	Matches  []Evidence `json:"matches"`
	Gaps     []Evidence `json:"gaps"`

	Stage          Stage       `json:"stage"`
	StageUpdatedAt time.Time   `json:"stage_updated_at"`
	RequiredDocIDs []uuid.UUID `json:"required_doc_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DedupKey identifies an opportunity across scans: the provider-qualified
// external id when the source supplied one, otherwise the normalized title.
func (o Opportunity) DedupKey() string {
	if strings.TrimSpace(o.SourceID) != "" {
		return strings.ToLower(o.Provider) + ":" + strings.TrimSpace(o.SourceID)
	}
	return "title:" + NormalizeTitle(o.Title)
}

// NormalizeTitle lowercases and collapses whitespace so near-identical
// titles from different registries dedup to the same key.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
