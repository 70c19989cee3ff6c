package models

import (
	"time"

	"github.com/google/uuid"
)

// DocStatus tracks how complete a required artifact is.
type DocStatus string

const (
	DocNeeded DocStatus = "needed"
	DocDraft  DocStatus = "draft"
	DocReady  DocStatus = "ready"
)

// Document is a required artifact (budget, narrative, registration proof)
// owned by the external document store. The engine only reads linkage and
// status.
type Document struct {
	ID                   uuid.UUID   `json:"id"`
	Name                 string      `json:"name"`
	Status               DocStatus   `json:"status"`
	IsTemplate           bool        `json:"is_template"`
	LinkedOpportunityIDs []uuid.UUID `json:"linked_opportunity_ids"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// LinkedTo reports whether the document is linked to the given opportunity.
func (d Document) LinkedTo(oppID uuid.UUID) bool {
	for _, id := range d.LinkedOpportunityIDs {
		if id == oppID {
			return true
		}
	}
	return false
}
