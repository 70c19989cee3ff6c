package scoring

import (
	"math"
	"time"
)

// Health blend weights. Fixed design constants: changing them is a
// versioned design change, not a runtime parameter.
const (
	healthFitWeight       = 0.30
	healthReadinessWeight = 0.25
	healthDeadlineWeight  = 0.25
	healthAmountWeight    = 0.20
)

// HealthInput is the per-opportunity slice of state the health score needs.
type HealthInput struct {
	FitScore          int
	AmountRaw         string
	Deadline          *time.Time
	TotalRequirements int
	DoneRequirements  int
}

// HealthScore is the composite prioritization metric plus the signals it
// was blended from, for display.
type HealthScore struct {
	Health          int     `json:"health"` // 0..100
	Readiness       float64 `json:"readiness"`
	DeadlineUrgency int     `json:"deadline_urgency"`
	DaysLeft        int     `json:"days_left"` // -1 when rolling
	Amount          int     `json:"amount"`
}

// ScoreHealth blends fit, readiness, deadline urgency, and award size into
// a single 0-100 score.
func ScoreHealth(in HealthInput, now time.Time) HealthScore {
	// Unknown effort is neutral, not zero.
	readiness := 50.0
	if in.TotalRequirements > 0 {
		readiness = float64(in.DoneRequirements) / float64(in.TotalRequirements) * 100
	}

	urgency := 20 // rolling deadlines keep a low, non-zero pull
	daysLeft := -1
	if in.Deadline != nil {
		daysLeft = int(in.Deadline.Sub(now).Hours() / 24)
		urgency = deadlineUrgency(daysLeft, in.Deadline.Before(now))
	}

	amount := ParseAmount(in.AmountRaw)
	amountScore := amountStep(amount)

	health := math.Round(float64(in.FitScore)*healthFitWeight +
		readiness*healthReadinessWeight +
		float64(urgency)*healthDeadlineWeight +
		float64(amountScore)*healthAmountWeight)
	if health < 0 {
		health = 0
	}
	if health > 100 {
		health = 100
	}

	return HealthScore{
		Health:          int(health),
		Readiness:       readiness,
		DeadlineUrgency: urgency,
		DaysLeft:        daysLeft,
		Amount:          amount,
	}
}

func deadlineUrgency(daysLeft int, pastDue bool) int {
	switch {
	case pastDue:
		return 0
	case daysLeft <= 7:
		return 100
	case daysLeft <= 14:
		return 90
	case daysLeft <= 30:
		return 70
	case daysLeft <= 60:
		return 50
	case daysLeft <= 90:
		return 30
	default:
		return 10
	}
}

func amountStep(amount int) int {
	switch {
	case amount > 100_000:
		return 100
	case amount > 25_000:
		return 80
	case amount > 5_000:
		return 60
	case amount > 0:
		return 40
	default:
		return 20
	}
}
