package planner

import (
	"testing"
	"time"

	"github.com/david/grantscout/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opp(title, amount string, fit int, stage models.Stage) models.Opportunity {
	return models.Opportunity{
		ID:        uuid.New(),
		Title:     title,
		AmountRaw: amount,
		FitScore:  fit,
		Stage:     stage,
	}
}

func doc(name string, status models.DocStatus, linked ...uuid.UUID) models.Document {
	return models.Document{
		ID:                   uuid.New(),
		Name:                 name,
		Status:               status,
		LinkedOpportunityIDs: linked,
	}
}

func TestCriticalPathOrdersByUnlockValue(t *testing.T) {
	big := opp("Rural Broadband Expansion", "$50,000", 70, models.StagePreparing)
	small := opp("Community Garden Fund", "$10,000", 80, models.StagePreparing)

	budget := doc("Project Budget", models.DocNeeded, big.ID)
	narrative := doc("Narrative", models.DocDraft, small.ID)

	plan := BuildPlan([]models.Opportunity{big, small}, []models.Document{budget, narrative}, 0)

	require.Len(t, plan.CriticalPath, 2)
	assert.Equal(t, "Project Budget", plan.CriticalPath[0].Document.Name)
	assert.Equal(t, 50000, plan.CriticalPath[0].UnlockValue)
	assert.Equal(t, "Narrative", plan.CriticalPath[1].Document.Name)
	assert.Equal(t, 10000, plan.CriticalPath[1].UnlockValue)
}

func TestCriticalPathSkipsReadyAndUnlinkedDocs(t *testing.T) {
	target := opp("STEM Education Grant", "$25,000", 75, models.StageQualifying)

	ready := doc("IRS Letter", models.DocReady, target.ID)
	orphan := doc("Old Pitch Deck", models.DocNeeded)
	needed := doc("Board Roster", models.DocNeeded, target.ID)

	plan := BuildPlan([]models.Opportunity{target}, []models.Document{ready, orphan, needed}, 0)

	require.Len(t, plan.CriticalPath, 1)
	assert.Equal(t, "Board Roster", plan.CriticalPath[0].Document.Name)
	assert.Equal(t, 1, plan.CriticalPath[0].OpportunityCount)
}

func TestCriticalPathSumsAcrossLinkedOpportunities(t *testing.T) {
	a := opp("Workforce Grant", "$30,000", 60, models.StageResearching)
	b := opp("Equipment Grant", "$15,000", 60, models.StageResearching)

	shared := doc("Financial Statements", models.DocDraft, a.ID, b.ID)

	plan := BuildPlan([]models.Opportunity{a, b}, []models.Document{shared}, 0)

	require.Len(t, plan.CriticalPath, 1)
	assert.Equal(t, 45000, plan.CriticalPath[0].UnlockValue)
	assert.Equal(t, 2, plan.CriticalPath[0].OpportunityCount)
}

func TestBuildLinksMergesBothDirections(t *testing.T) {
	target := opp("Dual-Linked Grant", "$8,000", 55, models.StageQualifying)
	// Linked from the opportunity side only.
	fromOpp := models.Document{ID: uuid.New(), Name: "SAM Registration", Status: models.DocNeeded}
	target.RequiredDocIDs = []uuid.UUID{fromOpp.ID}
	// Linked from the document side only.
	fromDoc := doc("Budget", models.DocNeeded, target.ID)

	plan := BuildPlan([]models.Opportunity{target}, []models.Document{fromOpp, fromDoc}, 0)

	require.Len(t, plan.Readiness, 1)
	assert.Equal(t, 2, plan.Readiness[0].Total)
}

func TestScenarioCoverageCapsAtHundred(t *testing.T) {
	rich := opp("Major Award", "$200,000", 90, models.StagePreparing)

	plan := BuildPlan([]models.Opportunity{rich}, nil, 50_000)

	var full Scenario
	for _, s := range plan.Scenarios {
		if s.Name == "full portfolio" {
			full = s
		}
	}
	assert.Equal(t, 200000, full.TotalValue)
	assert.Equal(t, 100.0, full.Coverage)
}

func TestMinimumEffortPrefersEfficientOpportunities(t *testing.T) {
	// Same amount and fit, but one drags two unfinished documents behind it.
	easy := opp("Easy Money", "$20,000", 80, models.StagePreparing)
	hard := opp("Paper Mountain", "$20,000", 80, models.StagePreparing)
	other1 := opp("Filler A", "$1,000", 40, models.StageResearching)
	other2 := opp("Filler B", "$1,000", 40, models.StageResearching)

	d1 := doc("Audit", models.DocNeeded, hard.ID)
	d2 := doc("Letters of Support", models.DocNeeded, hard.ID)

	plan := BuildPlan([]models.Opportunity{hard, easy, other1, other2}, []models.Document{d1, d2}, 0)

	var min Scenario
	for _, s := range plan.Scenarios {
		if s.Name == "minimum effort" {
			min = s
		}
	}
	require.Len(t, min.OpportunityIDs, 3)
	assert.Equal(t, easy.ID, min.OpportunityIDs[0])
}

func TestHighConfidenceScenarioFiltersByFit(t *testing.T) {
	strong := opp("Excellent Fit", "$10,000", 88, models.StageQualifying)
	weak := opp("Marginal Fit", "$10,000", 60, models.StageQualifying)

	plan := BuildPlan([]models.Opportunity{strong, weak}, nil, 0)

	var hc Scenario
	for _, s := range plan.Scenarios {
		if s.Name == "high-confidence" {
			hc = s
		}
	}
	require.Len(t, hc.OpportunityIDs, 1)
	assert.Equal(t, strong.ID, hc.OpportunityIDs[0])
}

func TestReadinessSortsByProgressThenFit(t *testing.T) {
	ahead := opp("Nearly Done", "$5,000", 60, models.StagePreparing)
	behind := opp("Just Started", "$5,000", 90, models.StagePreparing)
	alsoBehind := opp("Also Started", "$5,000", 70, models.StagePreparing)

	plan := BuildPlan(
		[]models.Opportunity{behind, ahead, alsoBehind},
		[]models.Document{
			doc("Ready Doc", models.DocReady, ahead.ID),
			doc("Open Doc A", models.DocNeeded, behind.ID),
			doc("Open Doc B", models.DocNeeded, alsoBehind.ID),
		},
		0,
	)

	require.Len(t, plan.Readiness, 3)
	assert.Equal(t, "Nearly Done", plan.Readiness[0].Opportunity.Title)
	assert.Equal(t, 100.0, plan.Readiness[0].Readiness)
	// Equal readiness breaks ties on fit.
	assert.Equal(t, "Just Started", plan.Readiness[1].Opportunity.Title)
	assert.Equal(t, "Also Started", plan.Readiness[2].Opportunity.Title)
}

func TestBuildPlanExcludesTerminalStages(t *testing.T) {
	live := opp("Live Grant", "$10,000", 70, models.StageDrafting)
	done := opp("Won Grant", "$10,000", 95, models.StageCompleted)
	lost := opp("Lost Grant", "$10,000", 95, models.StageRejected)

	shared := doc("Budget", models.DocNeeded, live.ID, done.ID, lost.ID)

	plan := BuildPlan([]models.Opportunity{live, done, lost}, []models.Document{shared}, 0)

	require.Len(t, plan.Readiness, 1)
	assert.Equal(t, "Live Grant", plan.Readiness[0].Opportunity.Title)
	require.Len(t, plan.CriticalPath, 1)
	assert.Equal(t, 10000, plan.CriticalPath[0].UnlockValue)
}

func TestHealthForUsesLinkedRequirements(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.AddDate(0, 0, 5)

	target := opp("Urgent Grant", "$30,000", 80, models.StagePreparing)
	target.CloseDate = &deadline

	score := HealthFor(now, target, []models.Document{
		doc("Budget", models.DocReady, target.ID),
		doc("Narrative", models.DocNeeded, target.ID),
	})

	assert.Equal(t, 50.0, score.Readiness)
	assert.Equal(t, 100, score.DeadlineUrgency)
	assert.Equal(t, 5, score.DaysLeft)
	// 80*0.30 + 50*0.25 + 100*0.25 + 80*0.20 = 77.5 -> 78
	assert.Equal(t, 78, score.Health)
}
