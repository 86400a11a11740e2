// Package orchestrator handles one chat turn end to end: session, intent,
// escalation or retrieval, reply and audit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/internal/escalation"
	"github.com/txdxai/sophia/internal/intent"
	"github.com/txdxai/sophia/internal/metrics"
	"github.com/txdxai/sophia/internal/monitoring"
	"github.com/txdxai/sophia/internal/retrieval"
	"github.com/txdxai/sophia/internal/risk"
	"github.com/txdxai/sophia/internal/session"
	"github.com/txdxai/sophia/internal/tenant"
	"github.com/txdxai/sophia/pkg/models"
)

// ErrEmptyMessage is returned for a blank chat message.
var ErrEmptyMessage = errors.New("message is empty")

// Response intents.
const (
	IntentActionEscalated = "action_escalated"
	IntentQuery           = "query"
	IntentUnknown         = "unknown"
)

// Tool names reported in Response.ToolCalls.
const (
	ToolCreateTicket = "create_victoria_ticket"
	ToolRAGSearch    = "rag_search"
)

// Audit trail identifiers for chat turns.
const (
	AuditActionChat = "CHAT"
	AuditEntityChat = "SOPHIA_MESSAGE"
)

// DefaultMaxTokens bounds the knowledge context added to a query reply.
const DefaultMaxTokens = 1500

const (
	queryReplyHeading = "**Response to your query:**\n"
	toolDataHeading   = "\n**Security Tool Data:**\n"
	noRAGReply        = "I can help answer your security questions. Please provide more details."
	rephraseReply     = "I'm not sure how to help with that. Can you rephrase your question or request?"
)

// Tenants resolves per-company agent handles.
type Tenants interface {
	Get(ctx context.Context, companyID int64, auth models.AuthContext) tenant.Handle
	Invalidate(companyID int64) bool
}

// Escalator raises VictorIA tickets.
type Escalator interface {
	Escalate(ctx context.Context, req escalation.Request) escalation.Result
}

// Auditor records chat turns in the platform audit trail.
type Auditor interface {
	Audit(ctx context.Context, token string, entry backend.AuditEntry) error
}

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Sessions      session.Store
	Tenants       Tenants
	Escalations   Escalator
	Monitoring    *monitoring.Registry
	Auditor       Auditor
	Metrics       *metrics.Metrics
	ContextTokens int
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	sessions      session.Store
	tenants       Tenants
	escalations   Escalator
	monitoring    *monitoring.Registry
	auditor       Auditor
	metrics       *metrics.Metrics
	contextTokens int
}

// New creates an Orchestrator.
func New(d Deps) *Orchestrator {
	if d.ContextTokens <= 0 {
		d.ContextTokens = DefaultMaxTokens
	}
	if d.Monitoring == nil {
		d.Monitoring = monitoring.NewRegistry()
	}
	return &Orchestrator{
		sessions:      d.Sessions,
		tenants:       d.Tenants,
		escalations:   d.Escalations,
		monitoring:    d.Monitoring,
		auditor:       d.Auditor,
		metrics:       d.Metrics,
		contextTokens: d.ContextTokens,
	}
}

// Request is one incoming chat message.
type Request struct {
	CompanyID int64
	UserID    int64
	Message   string
	ThreadID  string
	Auth      models.AuthContext
}

// Response is the reply to one chat message.
type Response struct {
	Text      string         `json:"response"`
	ThreadID  string         `json:"threadId"`
	AgentID   string         `json:"agentId"`
	Intent    string         `json:"intent"`
	ToolCalls []string       `json:"toolCalls"`
	TicketID  string         `json:"ticketId,omitempty"`
	Mode      string         `json:"mode"`
	Degraded  bool           `json:"degraded,omitempty"`
	ToolsData map[string]any `json:"toolsData,omitempty"`
}

// HandleMessage processes one chat turn. Collaborator failures degrade the
// reply; only caller errors (blank message, foreign or unknown thread) are
// returned.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	defer o.metrics.ObserveHandle(start)

	if strings.TrimSpace(req.Message) == "" {
		return Response{}, ErrEmptyMessage
	}

	threadID, err := o.resolveThread(req)
	if err != nil {
		return Response{}, err
	}

	handle := o.tenants.Get(ctx, req.CompanyID, req.Auth)

	if err := o.sessions.Append(threadID, models.RoleUser, req.Message); err != nil {
		return Response{}, fmt.Errorf("recording user message: %w", err)
	}

	d := intent.Classify(req.Message)
	slog.Info("intent detected",
		"company_id", req.CompanyID,
		"thread_id", threadID,
		"intent", d.Intent,
		"action_type", d.ActionType,
	)

	decision := risk.Classify(d)

	var resp Response
	switch {
	case decision.Escalate:
		resp = o.handleAction(ctx, req, threadID, d, decision)
	case d.Intent == models.IntentQuery, d.Intent == models.IntentAction:
		// Actions the policy lets through are answered, never executed.
		resp = o.handleQuery(ctx, req, handle)
	default:
		resp = Response{Text: rephraseReply, Intent: IntentUnknown, ToolCalls: []string{}}
	}

	resp.ThreadID = threadID
	resp.AgentID = handle.AgentID
	if resp.Mode == "" {
		resp.Mode = string(handle.Mode)
	}

	if err := o.sessions.Append(threadID, models.RoleAssistant, resp.Text); err != nil {
		slog.Warn("recording assistant message", "error", err, "thread_id", threadID)
	}

	o.audit(ctx, req, threadID, resp.Intent)
	o.metrics.Message(resp.Intent)
	return resp, nil
}

func (o *Orchestrator) resolveThread(req Request) (string, error) {
	if req.ThreadID == "" {
		return o.sessions.Create(req.CompanyID, req.UserID), nil
	}

	th, err := o.sessions.Get(req.ThreadID)
	if err != nil {
		return "", err
	}
	if th.CompanyID != req.CompanyID || th.UserID != req.UserID {
		return "", fmt.Errorf("%w: %s", session.ErrThreadNotFound, req.ThreadID)
	}
	return th.ID, nil
}

func (o *Orchestrator) handleAction(ctx context.Context, req Request, threadID string, d models.ActionDescriptor, decision risk.Decision) Response {
	slog.Info("action escalated",
		"company_id", req.CompanyID,
		"action_type", d.ActionType,
		"severity", decision.Severity,
	)

	res := o.escalations.Escalate(ctx, escalation.Request{
		Descriptor: d,
		CompanyID:  req.CompanyID,
		UserID:     req.UserID,
		ThreadID:   threadID,
		Auth:       req.Auth,
	})

	return Response{
		Text:      res.UserMessage,
		Intent:    IntentActionEscalated,
		ToolCalls: []string{ToolCreateTicket},
		TicketID:  res.TicketID,
		Degraded:  res.Degraded,
	}
}

func (o *Orchestrator) handleQuery(ctx context.Context, req Request, h tenant.Handle) Response {
	if h.Retriever == nil {
		return Response{
			Text:      noRAGReply,
			Intent:    IntentQuery,
			ToolCalls: []string{},
			Mode:      string(tenant.ModeMock),
		}
	}

	knowledge := retrieval.GetContext(ctx, h.Retriever, req.Message, o.contextTokens)

	tools, errs := o.monitoring.Collect(ctx, req.Message)
	for _, err := range errs {
		slog.Warn("monitoring source failed", "error", err, "company_id", req.CompanyID)
	}

	parts := []string{queryReplyHeading, knowledge}
	if len(tools.Sources) > 0 {
		parts = append(parts, toolDataHeading)
		for _, name := range tools.Sources {
			parts = append(parts,
				fmt.Sprintf("\n**%s:**", monitoring.DisplayName(name)),
				monitoring.Summary(tools.Data[name]),
			)
		}
	}

	resp := Response{
		Text:      strings.Join(parts, "\n"),
		Intent:    IntentQuery,
		ToolCalls: append([]string{ToolRAGSearch}, tools.Sources...),
		Degraded:  h.Degraded,
	}
	if len(tools.Data) > 0 {
		resp.ToolsData = tools.Data
	}
	return resp
}

func (o *Orchestrator) audit(ctx context.Context, req Request, threadID, respIntent string) {
	if o.auditor == nil {
		return
	}
	err := o.auditor.Audit(ctx, req.Auth.AccessToken, backend.AuditEntry{
		Action:     AuditActionChat,
		EntityType: AuditEntityChat,
		EntityID:   threadID,
		Payload: map[string]any{
			"company_id":     req.CompanyID,
			"user_id":        req.UserID,
			"intent":         respIntent,
			"message_length": len([]rune(req.Message)),
		},
	})
	if err != nil {
		slog.Warn("audit log failed", "error", err, "thread_id", threadID, "company_id", req.CompanyID)
	}
}
