// Package notify delivers escalation alerts to chat platforms. Each
// notifier implements escalation.Subscriber and formats the alert in
// its platform's native style.
package notify

import (
	"fmt"

	"github.com/lotline/lotline/internal/escalation"
	"github.com/lotline/lotline/internal/models"
)

// headline builds the one-line lead summary shared by all platforms.
func headline(esc *models.Escalation) string {
	who := esc.CustomerName
	if who == "" {
		who = esc.LeadID
	}
	return fmt.Sprintf("%s lead: %s moved %s → %s (score %.1f)",
		escLabel(esc.EscalationType), who, esc.OldStatus, esc.NewStatus, esc.Score)
}

func escLabel(escType string) string {
	switch escType {
	case escalation.TypeColdToHot, escalation.TypeWarmToHot:
		return "Hot"
	case escalation.TypeColdToWarm:
		return "Warm"
	default:
		return "New"
	}
}

// severityColor maps escalation types to attachment colors.
func severityColor(escType string) string {
	switch escType {
	case escalation.TypeColdToHot, escalation.TypeWarmToHot:
		return "#d62828" // red
	case escalation.TypeColdToWarm:
		return "#f77f00" // orange
	default:
		return "#36a64f"
	}
}
