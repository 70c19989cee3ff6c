package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the applicant's self-description. Tags are categorical
// eligibility labels (veteran, women-owned, nonprofit...), sectors are
// industry labels. Both feed the keyword compiler; the engine never
// writes back to the profile store.
type Profile struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Location      string    `json:"location"`
	Tags          []string  `json:"tags"`
	Sectors       []string  `json:"sectors"`
	Narrative     string    `json:"narrative"`
	FundingTarget int       `json:"funding_target"` // dollars needed, feeds scenario coverage
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Contact is a saved funder relationship. Only its existence matters to
// the engine (the relationship-thinness action rule).
type Contact struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Organization string    `json:"organization"`
	Role         string    `json:"role"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}
