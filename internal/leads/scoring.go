// Package leads runs the customer engagement engine: identity-resolved
// profiles, decayed interest scoring and status transitions.
package leads

import (
	"time"

	"github.com/lotline/lotline/internal/models"
)

// ScoringWindowDays bounds how far back events contribute to a score.
const ScoringWindowDays = 30

// Status thresholds on the decayed score.
const (
	EngagedThreshold   = 10.0
	QualifiedThreshold = 22.0
)

// ActionWeights assigns each engagement action its base score. Actions
// not listed contribute nothing but are still recorded.
var ActionWeights = map[string]float64{
	"viewed":             1,
	"compared":           3,
	"contact_dealer":     4,
	"availability_check": 5,
	"financed":           6,
	"test_drive":         8,
	"reserve_vehicle":    9,
	"purchase_deposit":   10,
}

// RecencyMultiplier decays an event's weight by its age.
func RecencyMultiplier(age time.Duration) float64 {
	day := 24 * time.Hour
	switch {
	case age <= day:
		return 1.0
	case age <= 3*day:
		return 0.85
	case age <= 7*day:
		return 0.70
	case age <= 14*day:
		return 0.50
	case age <= 30*day:
		return 0.30
	default:
		return 0
	}
}

// Contribution is one event's share of a lead score.
func Contribution(action string, createdAt, now time.Time) float64 {
	w, ok := ActionWeights[action]
	if !ok {
		return 0
	}
	return w * RecencyMultiplier(now.Sub(createdAt))
}

// Score sums decayed contributions over the scoring window.
func Score(events []models.LeadEvent, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -ScoringWindowDays)
	var total float64
	for _, e := range events {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		total += Contribution(e.Action, e.CreatedAt, now)
	}
	return total
}

// StatusForScore maps a score onto the automatic status ladder.
func StatusForScore(score float64) models.LeadStatus {
	switch {
	case score >= QualifiedThreshold:
		return models.LeadQualified
	case score >= EngagedThreshold:
		return models.LeadEngaged
	default:
		return models.LeadNew
	}
}

// ScoreBand labels a score for reporting: hot, warm or cold.
func ScoreBand(score float64) string {
	switch {
	case score >= QualifiedThreshold:
		return "hot"
	case score >= EngagedThreshold:
		return "warm"
	default:
		return "cold"
	}
}

// statusRank orders the automatic ladder so transitions only move
// forward. Terminal states sit above it and are handled separately.
var statusRank = map[models.LeadStatus]int{
	models.LeadNew:       0,
	models.LeadEngaged:   1,
	models.LeadQualified: 2,
}

// NextStatus applies forward-only movement: a score-derived status
// below the current one leaves the profile where it is, and terminal
// profiles never move.
func NextStatus(current models.LeadStatus, score float64) models.LeadStatus {
	if current.Terminal() {
		return current
	}
	derived := StatusForScore(score)
	if statusRank[derived] > statusRank[current] {
		return derived
	}
	return current
}
