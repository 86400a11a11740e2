package models

import (
	"time"

	"github.com/google/uuid"
)

// EscalationTicket is the payload handed to the ticket-creation backend when an
// action is routed to VictorIA for manual approval.
type EscalationTicket struct {
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	CompanyID   int64          `json:"company_id"`
	UserID      int64          `json:"user_id"`
	Context     map[string]any `json:"context,omitempty"`
	Metadata    TicketMetadata `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TicketMetadata records how and why a ticket was raised.
type TicketMetadata struct {
	ActionType    string         `json:"action_type"`
	Parameters    map[string]any `json:"parameters"`
	CreatedBy     string         `json:"created_by"`
	AutoEscalated bool           `json:"auto_escalated"`
}

// EscalationRecord is the local audit row written for every escalation,
// whether or not the ticket backend accepted it.
type EscalationRecord struct {
	ID          uuid.UUID      `db:"id"           json:"id"`
	TicketID    string         `db:"ticket_id"    json:"ticket_id"`
	CompanyID   int64          `db:"company_id"   json:"company_id"`
	UserID      int64          `db:"user_id"      json:"user_id"`
	ThreadID    string         `db:"thread_id"    json:"thread_id,omitempty"`
	ActionType  string         `db:"action_type"  json:"action_type"`
	Severity    Severity       `db:"severity"     json:"severity"`
	Subject     string         `db:"subject"      json:"subject"`
	Description string         `db:"description"  json:"description"`
	Parameters  map[string]any `db:"parameters"   json:"parameters"`
	Degraded    bool           `db:"degraded"     json:"degraded"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
}
