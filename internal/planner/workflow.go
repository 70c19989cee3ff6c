package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/david/grantscout/internal/models"
	"github.com/david/grantscout/internal/scoring"
)

// Action kinds, also used by clients to route the user to the right view.
const (
	KindDeadline  = "deadline"
	KindStage     = "stage"
	KindDocument  = "document"
	KindStale     = "stale"
	KindPortfolio = "portfolio"
	KindContact   = "contact"
)

// Action is one recommended next step. Lower Priority is more urgent.
type Action struct {
	Priority   int    `json:"priority"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	TargetView string `json:"target_view"`
}

const (
	maxActions     = 8
	staleAfterDays = 14
)

// NextActions evaluates the rule set against the current pipeline state and
// returns at most 8 actions, most urgent first. Rules fire in a fixed order
// so that equal-priority actions keep a stable, explainable ordering.
func NextActions(now time.Time, opps []models.Opportunity, docs []models.Document, contacts []models.Contact) []Action {
	active := activeOnly(opps)
	links := buildLinks(active, docs)

	var actions []Action

	// Deadline pressure on opportunities with unfinished requirements.
	for _, opp := range active {
		if opp.CloseDate == nil {
			continue
		}
		open := openRequirements(opp, links)
		if open == 0 {
			continue
		}
		days := int(opp.CloseDate.Sub(now).Hours() / 24)
		if days < 0 {
			continue
		}
		var priority int
		switch {
		case days <= 7:
			priority = 1
		case days <= 14:
			priority = 2
		case days <= 30:
			priority = 3
		default:
			continue
		}
		actions = append(actions, Action{
			Priority:   priority,
			Kind:       KindDeadline,
			Title:      fmt.Sprintf("%q closes in %d days", opp.Title, days),
			Detail:     fmt.Sprintf("%d required document(s) still unfinished", open),
			TargetView: "pipeline",
		})
	}

	// Stage nudges.
	for _, opp := range active {
		switch opp.Stage {
		case models.StageResearching:
			if opp.FitScore >= 70 {
				actions = append(actions, Action{
					Priority:   3,
					Kind:       KindStage,
					Title:      fmt.Sprintf("Qualify %q", opp.Title),
					Detail:     fmt.Sprintf("Fit score %d is strong enough to move past research", opp.FitScore),
					TargetView: "pipeline",
				})
			}
		case models.StageQualifying:
			if len(links.docsByOpp[opp.ID]) == 0 {
				actions = append(actions, Action{
					Priority:   4,
					Kind:       KindStage,
					Title:      fmt.Sprintf("Map requirements for %q", opp.Title),
					Detail:     "No documents are linked yet; list what the application needs",
					TargetView: "documents",
				})
			}
		case models.StagePreparing:
			if readinessPercent(opp, links) >= 80 {
				actions = append(actions, Action{
					Priority:   3,
					Kind:       KindStage,
					Title:      fmt.Sprintf("Start drafting %q", opp.Title),
					Detail:     "Most requirements are ready; begin the application",
					TargetView: "pipeline",
				})
			}
		case models.StageDrafting:
			if hasLinkedTemplate(opp, links) {
				actions = append(actions, Action{
					Priority:   4,
					Kind:       KindStage,
					Title:      fmt.Sprintf("Reuse template for %q", opp.Title),
					Detail:     "A ready template is linked; adapt it instead of writing from scratch",
					TargetView: "documents",
				})
			}
		}
	}

	// Shared documents: one needed document blocking several applications.
	for _, doc := range docs {
		if doc.Status != models.DocNeeded {
			continue
		}
		if n := len(links.oppsByDoc[doc.ID]); n >= 2 {
			actions = append(actions, Action{
				Priority:   3,
				Kind:       KindDocument,
				Title:      fmt.Sprintf("Prepare %q", doc.Name),
				Detail:     fmt.Sprintf("Blocks %d active opportunities", n),
				TargetView: "documents",
			})
		}
	}

	// High-fit opportunities going stale early in the pipeline.
	for _, opp := range active {
		if opp.FitScore < 80 {
			continue
		}
		if opp.Stage != models.StageResearching && opp.Stage != models.StageQualifying {
			continue
		}
		idle := int(now.Sub(opp.StageUpdatedAt).Hours() / 24)
		if idle > staleAfterDays {
			actions = append(actions, Action{
				Priority:   5,
				Kind:       KindStale,
				Title:      fmt.Sprintf("%q has stalled", opp.Title),
				Detail:     fmt.Sprintf("Fit score %d but no stage change in %d days", opp.FitScore, idle),
				TargetView: "pipeline",
			})
		}
	}

	// Portfolio thinness.
	if len(active) < 10 {
		actions = append(actions, Action{
			Priority:   6,
			Kind:       KindPortfolio,
			Title:      "Run a discovery scan",
			Detail:     fmt.Sprintf("Only %d active opportunities in the pipeline", len(active)),
			TargetView: "search",
		})
	}

	// No human leads at all.
	if len(contacts) == 0 {
		actions = append(actions, Action{
			Priority:   6,
			Kind:       KindContact,
			Title:      "Add a funder contact",
			Detail:     "Applications with a named contact convert better; record at least one",
			TargetView: "contacts",
		})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})
	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}
	return actions
}

func openRequirements(opp models.Opportunity, links linkIndex) int {
	n := 0
	for _, doc := range links.docsByOpp[opp.ID] {
		if doc.Status != models.DocReady {
			n++
		}
	}
	return n
}

func readinessPercent(opp models.Opportunity, links linkIndex) float64 {
	linked := links.docsByOpp[opp.ID]
	if len(linked) == 0 {
		return 0
	}
	done := 0
	for _, doc := range linked {
		if doc.Status == models.DocReady {
			done++
		}
	}
	return float64(done) / float64(len(linked)) * 100
}

func hasLinkedTemplate(opp models.Opportunity, links linkIndex) bool {
	for _, doc := range links.docsByOpp[opp.ID] {
		if doc.IsTemplate && doc.Status == models.DocReady {
			return true
		}
	}
	return false
}

// HealthFor computes the composite health score for one opportunity using
// its linked requirement state.
func HealthFor(now time.Time, opp models.Opportunity, docs []models.Document) scoring.HealthScore {
	links := buildLinks([]models.Opportunity{opp}, docs)
	linked := links.docsByOpp[opp.ID]
	done := 0
	for _, doc := range linked {
		if doc.Status == models.DocReady {
			done++
		}
	}
	return scoring.ScoreHealth(scoring.HealthInput{
		FitScore:          opp.FitScore,
		AmountRaw:         opp.AmountRaw,
		Deadline:          opp.CloseDate,
		TotalRequirements: len(linked),
		DoneRequirements:  done,
	}, now)
}
