// Package escalation turns an action descriptor into a VictorIA ticket and the
// message shown to the user.
package escalation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/internal/metrics"
	"github.com/txdxai/sophia/internal/risk"
	"github.com/txdxai/sophia/pkg/models"
)

// ErrEscalationDegraded marks an escalation whose ticket was synthesized
// locally because the ticket backend failed. It is logged, not returned.
var ErrEscalationDegraded = errors.New("escalation degraded: ticket created locally")

// DefaultResponseTime is shown when the backend gives no estimate.
const DefaultResponseTime = "15 minutos"

// CreatedBy tags every ticket raised by this service.
const CreatedBy = "SOPHIA"

// Tickets is the subset of the backend client used for ticket handling.
type Tickets interface {
	CreateTicket(ctx context.Context, token string, t models.EscalationTicket) (backend.TicketReceipt, error)
	TicketStatus(ctx context.Context, token, ticketID string) (backend.TicketState, error)
	CancelTicket(ctx context.Context, token, ticketID string) (backend.TicketState, error)
}

// Ledger persists escalation records.
type Ledger interface {
	CreateEscalation(ctx context.Context, rec *models.EscalationRecord) error
}

// Request is one escalation attempt.
type Request struct {
	Descriptor models.ActionDescriptor
	CompanyID  int64
	UserID     int64
	ThreadID   string
	Auth       models.AuthContext
}

// Result is what the caller needs to answer the user.
type Result struct {
	TicketID     string
	Severity     models.Severity
	UserMessage  string
	ResponseTime string
	Degraded     bool
	Ticket       models.EscalationTicket
}

// Builder creates escalation tickets.
type Builder struct {
	tickets Tickets
	ledger  Ledger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

// NewBuilder creates a new Builder. ledger and m may be nil.
func NewBuilder(tickets Tickets, ledger Ledger, m *metrics.Metrics, timeout time.Duration) *Builder {
	if timeout <= 0 {
		timeout = backend.DefaultTimeouts.Ticket
	}
	return &Builder{
		tickets: tickets,
		ledger:  ledger,
		metrics: m,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Escalate builds the ticket, submits it and always returns a usable result.
// Backend failures fall back to a locally generated ticket id.
func (b *Builder) Escalate(ctx context.Context, req Request) Result {
	d := req.Descriptor
	ticket := BuildTicket(d, req.CompanyID, req.UserID, b.now())
	ticket.Context = map[string]any{"intent_type": string(d.Intent)}
	if req.ThreadID != "" {
		ticket.Context["thread_id"] = req.ThreadID
	}

	res := Result{
		Severity:     ticket.Severity,
		ResponseTime: DefaultResponseTime,
		Ticket:       ticket,
	}

	tctx, cancel := context.WithTimeout(ctx, b.timeout)
	receipt, err := b.tickets.CreateTicket(tctx, req.Auth.AccessToken, ticket)
	cancel()

	if err != nil {
		res.TicketID = LocalTicketID(req.CompanyID, ticket.Subject)
		res.Degraded = true
		slog.Warn("ticket backend failed, using local ticket id",
			"error", fmt.Errorf("%w: %w", ErrEscalationDegraded, err),
			"company_id", req.CompanyID,
			"ticket_id", res.TicketID,
			"action_type", d.ActionType,
		)
	} else {
		res.TicketID = receipt.TicketID
		if receipt.EstimatedResponseTime != "" {
			res.ResponseTime = receipt.EstimatedResponseTime
		}
	}

	res.UserMessage = UserMessage(res.TicketID, res.Severity, res.ResponseTime)

	b.record(ctx, req, res)
	b.metrics.Escalation(string(res.Severity), res.Degraded)

	slog.Info("escalation created",
		"company_id", req.CompanyID,
		"ticket_id", res.TicketID,
		"severity", res.Severity,
		"degraded", res.Degraded,
	)
	return res
}

func (b *Builder) record(ctx context.Context, req Request, res Result) {
	if b.ledger == nil {
		return
	}
	rec := &models.EscalationRecord{
		ID:          uuid.New(),
		TicketID:    res.TicketID,
		CompanyID:   req.CompanyID,
		UserID:      req.UserID,
		ThreadID:    req.ThreadID,
		ActionType:  req.Descriptor.ActionType,
		Severity:    res.Severity,
		Subject:     res.Ticket.Subject,
		Description: res.Ticket.Description,
		Parameters:  res.Ticket.Metadata.Parameters,
		Degraded:    res.Degraded,
		CreatedAt:   res.Ticket.CreatedAt,
	}
	if err := b.ledger.CreateEscalation(ctx, rec); err != nil {
		slog.Error("recording escalation", "error", err, "ticket_id", res.TicketID, "company_id", req.CompanyID)
	}
}

// Status returns the backend view of a ticket.
func (b *Builder) Status(ctx context.Context, auth models.AuthContext, ticketID string) (backend.TicketState, error) {
	st, err := b.tickets.TicketStatus(ctx, auth.AccessToken, ticketID)
	if err != nil {
		return backend.TicketState{}, fmt.Errorf("checking ticket %s: %w", ticketID, err)
	}
	return st, nil
}

// Cancel asks the backend to cancel a ticket.
func (b *Builder) Cancel(ctx context.Context, auth models.AuthContext, ticketID string) (backend.TicketState, error) {
	st, err := b.tickets.CancelTicket(ctx, auth.AccessToken, ticketID)
	if err != nil {
		return backend.TicketState{}, fmt.Errorf("cancelling ticket %s: %w", ticketID, err)
	}
	return st, nil
}

// BuildTicket assembles the ticket payload for d. It performs no I/O.
func BuildTicket(d models.ActionDescriptor, companyID, userID int64, now time.Time) models.EscalationTicket {
	params := d.Params()
	return models.EscalationTicket{
		Subject:     "Security Action Request: " + d.ActionType,
		Description: describe(d, params),
		Severity:    risk.Severity(d),
		CompanyID:   companyID,
		UserID:      userID,
		Metadata: models.TicketMetadata{
			ActionType:    d.ActionType,
			Parameters:    params,
			CreatedBy:     CreatedBy,
			AutoEscalated: d.RequiresEscalation,
		},
		CreatedAt: now,
	}
}

func describe(d models.ActionDescriptor, params map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User requested action: %s\n\n", d.OriginalMessage)
	fmt.Fprintf(&sb, "Detected Intent: %s\n", d.Intent)
	fmt.Fprintf(&sb, "Action Type: %s\n", d.ActionType)
	fmt.Fprintf(&sb, "Parameters: %v\n", params)
	fmt.Fprintf(&sb, "Requires Escalation: %t\n\n", d.RequiresEscalation)
	sb.WriteString("This action requires manual review and execution by VictorIA.")
	return sb.String()
}

// LocalTicketID synthesizes a ticket id when the backend is unavailable:
// LOCAL-<company>-<subject hash>-<random>. Two calls never collide.
func LocalTicketID(companyID int64, subject string) string {
	sum := sha256.Sum256([]byte(subject))
	u := uuid.New()
	return fmt.Sprintf("LOCAL-%d-%s-%s", companyID, hex.EncodeToString(sum[:2]), hex.EncodeToString(u[:4]))
}
