// Package risk assigns a severity tier to a classified action and decides
// whether it must be escalated for manual approval.
package risk

import "github.com/txdxai/sophia/pkg/models"

// severityHighActions is the narrower legacy list that only raises severity.
// It overlaps with, but is not the same as, the escalation catalogue.
var severityHighActions = map[string]bool{
	models.ActionBlockIP:          true,
	models.ActionQuarantineDevice: true,
	models.ActionShutdownSystem:   true,
}

// Decision is the outcome of the risk policy for one descriptor.
type Decision struct {
	Severity models.Severity
	Escalate bool
}

// Classify is total: every descriptor maps to exactly one decision.
func Classify(d models.ActionDescriptor) Decision {
	return Decision{
		Severity: Severity(d),
		Escalate: ShouldEscalate(d),
	}
}

// Severity derives the ticket severity from the descriptor.
func Severity(d models.ActionDescriptor) models.Severity {
	switch {
	case d.RequiresEscalation:
		return models.SeverityCritical
	case severityHighActions[d.ActionType]:
		return models.SeverityHigh
	case d.Intent == models.IntentAction:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// ShouldEscalate reports whether the action must go to VictorIA. Every action
// intent escalates; nothing is executed directly.
func ShouldEscalate(d models.ActionDescriptor) bool {
	return d.RequiresEscalation || d.Intent == models.IntentAction
}
