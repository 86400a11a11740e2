package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/pkg/models"
)

// Client satisfies backend.Client for testing. Unset Func fields fall back to
// benign defaults; every call is recorded.
type Client struct {
	AuthenticateFunc func(ctx context.Context, companyID int64, accessKey string) (backend.AuthResult, error)
	GetInstanceFunc  func(ctx context.Context, instanceID string) (backend.AgentInstance, error)
	CreateTicketFunc func(ctx context.Context, token string, t models.EscalationTicket) (backend.TicketReceipt, error)
	TicketStatusFunc func(ctx context.Context, token, ticketID string) (backend.TicketState, error)
	CancelTicketFunc func(ctx context.Context, token, ticketID string) (backend.TicketState, error)
	AuditFunc        func(ctx context.Context, token string, e backend.AuditEntry) error

	mu      sync.Mutex
	Tickets []models.EscalationTicket
	Audits  []backend.AuditEntry
	Auths   int
}

func (m *Client) Authenticate(ctx context.Context, companyID int64, accessKey string) (backend.AuthResult, error) {
	m.mu.Lock()
	m.Auths++
	m.mu.Unlock()
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, companyID, accessKey)
	}
	return backend.AuthResult{
		AccessToken:     "token-" + accessKey,
		AgentInstanceID: fmt.Sprintf("instance-%d", companyID),
		Instance:        &backend.AgentInstance{},
	}, nil
}

func (m *Client) GetInstance(ctx context.Context, instanceID string) (backend.AgentInstance, error) {
	if m.GetInstanceFunc != nil {
		return m.GetInstanceFunc(ctx, instanceID)
	}
	return backend.AgentInstance{}, nil
}

func (m *Client) CreateTicket(ctx context.Context, token string, t models.EscalationTicket) (backend.TicketReceipt, error) {
	m.mu.Lock()
	m.Tickets = append(m.Tickets, t)
	n := len(m.Tickets)
	m.mu.Unlock()
	if m.CreateTicketFunc != nil {
		return m.CreateTicketFunc(ctx, token, t)
	}
	return backend.TicketReceipt{
		TicketID:              fmt.Sprintf("VIC-%d-%04d", t.CompanyID, n),
		Status:                "pending",
		EstimatedResponseTime: "15 minutos",
	}, nil
}

func (m *Client) TicketStatus(ctx context.Context, token, ticketID string) (backend.TicketState, error) {
	if m.TicketStatusFunc != nil {
		return m.TicketStatusFunc(ctx, token, ticketID)
	}
	return backend.TicketState{TicketID: ticketID, Status: "in_progress"}, nil
}

func (m *Client) CancelTicket(ctx context.Context, token, ticketID string) (backend.TicketState, error) {
	if m.CancelTicketFunc != nil {
		return m.CancelTicketFunc(ctx, token, ticketID)
	}
	return backend.TicketState{TicketID: ticketID, Status: "cancelled"}, nil
}

func (m *Client) Audit(ctx context.Context, token string, e backend.AuditEntry) error {
	m.mu.Lock()
	m.Audits = append(m.Audits, e)
	m.mu.Unlock()
	if m.AuditFunc != nil {
		return m.AuditFunc(ctx, token, e)
	}
	return nil
}

// TicketCount returns how many tickets were submitted.
func (m *Client) TicketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Tickets)
}

// AuditCount returns how many audit entries were submitted.
func (m *Client) AuditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Audits)
}

// NewFailingClient returns a Client whose ticket and audit calls fail with err.
func NewFailingClient(err error) *Client {
	return &Client{
		CreateTicketFunc: func(context.Context, string, models.EscalationTicket) (backend.TicketReceipt, error) {
			return backend.TicketReceipt{}, err
		},
		AuditFunc: func(context.Context, string, backend.AuditEntry) error {
			return err
		},
	}
}

// NewTimeoutClient returns a Client whose ticket call blocks until ctx is done.
func NewTimeoutClient() *Client {
	return &Client{
		CreateTicketFunc: func(ctx context.Context, _ string, _ models.EscalationTicket) (backend.TicketReceipt, error) {
			<-ctx.Done()
			return backend.TicketReceipt{}, fmt.Errorf("%w: %v", backend.ErrBackendTimeout, ctx.Err())
		},
	}
}

// Compile-time check that Client implements backend.Client.
var _ backend.Client = (*Client)(nil)
