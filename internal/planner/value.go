// Package planner turns the tracked pipeline and its required artifacts
// into ranked views: which document to finish next, which portfolio
// scenarios are worth pursuing, and what the next action is.
package planner

import (
	"sort"

	"github.com/david/grantscout/internal/models"
	"github.com/david/grantscout/internal/scoring"
	"github.com/google/uuid"
)

// DocAction is one critical-path entry: finishing this document unlocks
// this much money across this many opportunities.
type DocAction struct {
	Document         models.Document `json:"document"`
	UnlockValue      int             `json:"unlock_value"`
	OpportunityCount int             `json:"opportunity_count"`
}

// Scenario is a named portfolio view with its total value, coverage of the
// caller's funding target, and remaining effort.
type Scenario struct {
	Name             string      `json:"name"`
	OpportunityIDs   []uuid.UUID `json:"opportunity_ids"`
	TotalValue       int         `json:"total_value"`
	Coverage         float64     `json:"coverage"` // percent of target, capped at 100
	OpenRequirements int         `json:"open_requirements"`
}

// OpportunityReadiness annotates an opportunity with requirement progress.
type OpportunityReadiness struct {
	Opportunity models.Opportunity `json:"opportunity"`
	Readiness   float64            `json:"readiness"` // percent
	Done        int                `json:"done"`
	Total       int                `json:"total"`
}

// Plan is the full value/priority output.
type Plan struct {
	CriticalPath []DocAction            `json:"critical_path"`
	Scenarios    []Scenario             `json:"scenarios"`
	Readiness    []OpportunityReadiness `json:"readiness"`
}

// BuildPlan joins the tracked opportunities and documents into the ranked
// plan. Terminal-stage opportunities are excluded defensively even though
// the caller contract already filters them. targetNeed of 0 disables
// coverage percentages.
func BuildPlan(opps []models.Opportunity, docs []models.Document, targetNeed int) Plan {
	active := activeOnly(opps)
	links := buildLinks(active, docs)

	return Plan{
		CriticalPath: criticalPath(active, docs, links),
		Scenarios:    scenarios(active, links, targetNeed),
		Readiness:    readiness(active, links),
	}
}

// linkIndex resolves the two linkage directions (opportunity lists the
// document, document lists the opportunity) into one symmetric view.
type linkIndex struct {
	docsByOpp map[uuid.UUID][]models.Document
	oppsByDoc map[uuid.UUID][]models.Opportunity
}

func buildLinks(opps []models.Opportunity, docs []models.Document) linkIndex {
	idx := linkIndex{
		docsByOpp: make(map[uuid.UUID][]models.Document),
		oppsByDoc: make(map[uuid.UUID][]models.Opportunity),
	}

	oppByID := make(map[uuid.UUID]models.Opportunity, len(opps))
	for _, opp := range opps {
		oppByID[opp.ID] = opp
	}

	link := func(opp models.Opportunity, doc models.Document) {
		for _, existing := range idx.docsByOpp[opp.ID] {
			if existing.ID == doc.ID {
				return
			}
		}
		idx.docsByOpp[opp.ID] = append(idx.docsByOpp[opp.ID], doc)
		idx.oppsByDoc[doc.ID] = append(idx.oppsByDoc[doc.ID], opp)
	}

	for _, doc := range docs {
		for _, oppID := range doc.LinkedOpportunityIDs {
			if opp, ok := oppByID[oppID]; ok {
				link(opp, doc)
			}
		}
	}
	for _, opp := range opps {
		for _, docID := range opp.RequiredDocIDs {
			for _, doc := range docs {
				if doc.ID == docID {
					link(opp, doc)
				}
			}
		}
	}
	return idx
}

// criticalPath ranks non-ready documents by the total dollar value they
// unlock. Later money is usually locked behind earlier paperwork, so this
// ordering is the rational completion order.
func criticalPath(opps []models.Opportunity, docs []models.Document, links linkIndex) []DocAction {
	var path []DocAction
	for _, doc := range docs {
		if doc.Status == models.DocReady {
			continue
		}
		linked := links.oppsByDoc[doc.ID]
		if len(linked) == 0 {
			continue
		}
		value := 0
		for _, opp := range linked {
			value += scoring.ParseAmount(opp.AmountRaw)
		}
		path = append(path, DocAction{
			Document:         doc,
			UnlockValue:      value,
			OpportunityCount: len(linked),
		})
	}

	sort.SliceStable(path, func(i, j int) bool {
		return path[i].UnlockValue > path[j].UnlockValue
	})
	return path
}

// efficiency rewards high-value, high-fit, low-remaining-effort work.
func efficiency(opp models.Opportunity, openReqs int) float64 {
	divisor := openReqs
	if divisor < 1 {
		divisor = 1
	}
	return float64(scoring.ParseAmount(opp.AmountRaw)) * float64(opp.FitScore) / float64(divisor)
}

func scenarios(opps []models.Opportunity, links linkIndex, targetNeed int) []Scenario {
	openReqs := func(opp models.Opportunity) int {
		n := 0
		for _, doc := range links.docsByOpp[opp.ID] {
			if doc.Status != models.DocReady {
				n++
			}
		}
		return n
	}

	// Minimum effort: top 3 by efficiency.
	byEfficiency := make([]models.Opportunity, len(opps))
	copy(byEfficiency, opps)
	sort.SliceStable(byEfficiency, func(i, j int) bool {
		return efficiency(byEfficiency[i], openReqs(byEfficiency[i])) >
			efficiency(byEfficiency[j], openReqs(byEfficiency[j]))
	})
	minEffort := byEfficiency
	if len(minEffort) > 3 {
		minEffort = minEffort[:3]
	}

	// High confidence: everything with excellent-range fit.
	var highConfidence []models.Opportunity
	for _, opp := range opps {
		if opp.FitScore >= 85 {
			highConfidence = append(highConfidence, opp)
		}
	}

	// Full portfolio: everything with a known dollar value.
	var fullPortfolio []models.Opportunity
	for _, opp := range opps {
		if scoring.ParseAmount(opp.AmountRaw) > 0 {
			fullPortfolio = append(fullPortfolio, opp)
		}
	}

	build := func(name string, members []models.Opportunity) Scenario {
		s := Scenario{Name: name}
		for _, opp := range members {
			s.OpportunityIDs = append(s.OpportunityIDs, opp.ID)
			s.TotalValue += scoring.ParseAmount(opp.AmountRaw)
			s.OpenRequirements += openReqs(opp)
		}
		if targetNeed > 0 {
			s.Coverage = float64(s.TotalValue) / float64(targetNeed) * 100
			if s.Coverage > 100 {
				s.Coverage = 100
			}
		}
		return s
	}

	return []Scenario{
		build("minimum effort", minEffort),
		build("high-confidence", highConfidence),
		build("full portfolio", fullPortfolio),
	}
}

func readiness(opps []models.Opportunity, links linkIndex) []OpportunityReadiness {
	out := make([]OpportunityReadiness, 0, len(opps))
	for _, opp := range opps {
		linked := links.docsByOpp[opp.ID]
		done := 0
		for _, doc := range linked {
			if doc.Status == models.DocReady {
				done++
			}
		}
		pct := 0.0
		if len(linked) > 0 {
			pct = float64(done) / float64(len(linked)) * 100
		}
		out = append(out, OpportunityReadiness{
			Opportunity: opp,
			Readiness:   pct,
			Done:        done,
			Total:       len(linked),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Readiness != out[j].Readiness {
			return out[i].Readiness > out[j].Readiness
		}
		return out[i].Opportunity.FitScore > out[j].Opportunity.FitScore
	})
	return out
}

func activeOnly(opps []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if !opp.Stage.Terminal() {
			out = append(out, opp)
		}
	}
	return out
}
