// Package models contains shared data models used across the SOPHIA codebase.
package models

// Intent is the classifier's top-level decision for a message.
type Intent string

const (
	IntentQuery   Intent = "query"
	IntentAction  Intent = "action"
	IntentUnknown Intent = "unknown"
)

// Action types produced by the classifier.
const (
	ActionBlockIP             = "block_ip"
	ActionQuarantineDevice    = "quarantine_device"
	ActionShutdownSystem      = "shutdown_system"
	ActionDeleteUser          = "delete_user"
	ActionDisableFirewall     = "disable_firewall"
	ActionEmergencyResponse   = "emergency_response"
	ActionIsolateNetwork      = "isolate_network"
	ActionBlockResource       = "block_resource"
	ActionConfigurationChange = "configuration_change"
	ActionGeneral             = "general_action"
	ActionUnclear             = "unclear"
	ActionInformationRequest  = "information_request"
)

// Parameter keys filled by the classifier's extractor.
const (
	ParamIPAddresses = "ip_addresses"
	ParamDeviceName  = "device_name"
	ParamSeverity    = "severity"
	ParamQuery       = "query"
	ParamMessage     = "message"
)

// ActionDescriptor is the classifier's structured reading of one message.
// It is produced fresh per message and treated as immutable; Params returns a copy.
type ActionDescriptor struct {
	Intent             Intent         `json:"intent"`
	ActionType         string         `json:"action_type"`
	Parameters         map[string]any `json:"parameters"`
	OriginalMessage    string         `json:"original_message"`
	RequiresEscalation bool           `json:"requires_escalation"`
}

// Params returns a shallow copy of the descriptor parameters.
func (d ActionDescriptor) Params() map[string]any {
	out := make(map[string]any, len(d.Parameters))
	for k, v := range d.Parameters {
		if ips, ok := v.([]string); ok {
			v = append([]string(nil), ips...)
		}
		out[k] = v
	}
	return out
}

// Severity is the risk tier assigned to an action.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s names a known severity tier.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
