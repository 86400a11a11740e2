// Package backend talks to the TxDxAI platform API: agent credential exchange,
// VictorIA ticket handling and the audit trail.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/txdxai/sophia/pkg/models"
)

// Sentinel errors for backend failures.
var (
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrBackendTimeout     = errors.New("backend timeout")
	ErrBackendStatus      = errors.New("backend unexpected status")
	ErrUnauthorized       = errors.New("backend rejected credentials")
)

// AgentType identifies this service to the credential endpoint.
const AgentType = "SOPHIA"

// Client is the interface for the platform backend.
type Client interface {
	Authenticate(ctx context.Context, companyID int64, accessKey string) (AuthResult, error)
	GetInstance(ctx context.Context, instanceID string) (AgentInstance, error)
	CreateTicket(ctx context.Context, token string, ticket models.EscalationTicket) (TicketReceipt, error)
	TicketStatus(ctx context.Context, token, ticketID string) (TicketState, error)
	CancelTicket(ctx context.Context, token, ticketID string) (TicketState, error)
	Audit(ctx context.Context, token string, entry AuditEntry) error
}

// AuthResult is the outcome of exchanging an agent access key.
type AuthResult struct {
	AccessToken     string         `json:"access_token"`
	AgentInstanceID string         `json:"agent_instance_id"`
	Instance        *AgentInstance `json:"agent_instance,omitempty"`
}

// UnmarshalJSON accepts agent_instance_id as a JSON number or string.
func (a *AuthResult) UnmarshalJSON(b []byte) error {
	type alias AuthResult
	aux := struct {
		AgentInstanceID wireID `json:"agent_instance_id"`
		*alias
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.AgentInstanceID = string(aux.AgentInstanceID)
	return nil
}

// AgentInstance is the provider metadata the platform stores per company agent.
type AgentInstance struct {
	ProjectID        string `json:"azure_project_id"`
	AgentID          string `json:"azure_agent_id"`
	VectorStoreID    string `json:"azure_vector_store_id"`
	OpenAIEndpoint   string `json:"azure_openai_endpoint"`
	OpenAIKey        string `json:"azure_openai_key"`
	OpenAIDeployment string `json:"azure_openai_deployment"`
	SearchEndpoint   string `json:"azure_search_endpoint"`
	SearchKey        string `json:"azure_search_key"`
}

// Empty reports whether the instance carries no metadata at all.
func (a AgentInstance) Empty() bool {
	return a == AgentInstance{}
}

// TenantConfig converts the instance metadata into a tenant agent config.
func (a AgentInstance) TenantConfig(companyID int64) models.TenantAgentConfig {
	return models.TenantAgentConfig{
		CompanyID:        companyID,
		ProjectID:        a.ProjectID,
		AgentID:          a.AgentID,
		VectorStoreID:    a.VectorStoreID,
		OpenAIEndpoint:   a.OpenAIEndpoint,
		OpenAIKey:        a.OpenAIKey,
		OpenAIDeployment: a.OpenAIDeployment,
		SearchEndpoint:   a.SearchEndpoint,
		SearchKey:        a.SearchKey,
	}
}

// TicketReceipt is returned by the ticket endpoint on creation.
type TicketReceipt struct {
	TicketID              string `json:"ticket_id"`
	Status                string `json:"status"`
	EstimatedResponseTime string `json:"estimated_response_time"`
}

// UnmarshalJSON accepts ticket_id as a JSON number or string.
func (t *TicketReceipt) UnmarshalJSON(b []byte) error {
	type alias TicketReceipt
	aux := struct {
		TicketID wireID `json:"ticket_id"`
		*alias
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.TicketID = string(aux.TicketID)
	return nil
}

// TicketState is the lifecycle view of an existing ticket.
type TicketState struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// UnmarshalJSON accepts ticket_id as a JSON number or string.
func (t *TicketState) UnmarshalJSON(b []byte) error {
	type alias TicketState
	aux := struct {
		TicketID wireID `json:"ticket_id"`
		*alias
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.TicketID = string(aux.TicketID)
	return nil
}

// wireID is a platform identifier. Integer primary keys and strings are both
// accepted.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier must be a number or string: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

// ticketRequest is the POST /tickets body.
type ticketRequest struct {
	Subject     string          `json:"subject"`
	Description string          `json:"description"`
	UserID      int64           `json:"userId"`
	Severity    models.Severity `json:"severity"`
	Metadata    ticketMetadata  `json:"metadata"`
}

type ticketMetadata struct {
	models.TicketMetadata
	Context map[string]any `json:"context,omitempty"`
}

func newTicketRequest(t models.EscalationTicket) ticketRequest {
	return ticketRequest{
		Subject:     t.Subject,
		Description: t.Description,
		UserID:      t.UserID,
		Severity:    t.Severity,
		Metadata:    ticketMetadata{TicketMetadata: t.Metadata, Context: t.Context},
	}
}

// AuditEntry is one row of the platform audit trail.
type AuditEntry struct {
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// Timeouts bounds each class of backend call.
type Timeouts struct {
	Auth   time.Duration
	Ticket time.Duration
	Audit  time.Duration
}

// DefaultTimeouts are used for zero fields.
var DefaultTimeouts = Timeouts{
	Auth:   10 * time.Second,
	Ticket: 30 * time.Second,
	Audit:  5 * time.Second,
}

// HTTPClient implements Client over the platform's JSON API.
type HTTPClient struct {
	baseURL  string
	timeouts Timeouts
	client   *http.Client
}

// NewHTTPClient creates a new backend HTTP client.
func NewHTTPClient(baseURL string, timeouts Timeouts) *HTTPClient {
	if timeouts.Auth <= 0 {
		timeouts.Auth = DefaultTimeouts.Auth
	}
	if timeouts.Ticket <= 0 {
		timeouts.Ticket = DefaultTimeouts.Ticket
	}
	if timeouts.Audit <= 0 {
		timeouts.Audit = DefaultTimeouts.Audit
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeouts: timeouts,
		client:   &http.Client{},
	}
}

func (c *HTTPClient) Authenticate(ctx context.Context, companyID int64, accessKey string) (AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Auth)
	defer cancel()

	body := map[string]any{
		"companyId":      companyID,
		"agentType":      AgentType,
		"agentAccessKey": accessKey,
	}

	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/agents/auth/token", "", body, http.StatusOK, &out); err != nil {
		return AuthResult{}, err
	}
	if out.Instance != nil && out.Instance.Empty() {
		out.Instance = nil
	}
	return out, nil
}

func (c *HTTPClient) GetInstance(ctx context.Context, instanceID string) (AgentInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Auth)
	defer cancel()

	var out AgentInstance
	path := "/agents/instance/" + url.PathEscape(instanceID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, http.StatusOK, &out); err != nil {
		return AgentInstance{}, err
	}
	return out, nil
}

func (c *HTTPClient) CreateTicket(ctx context.Context, token string, ticket models.EscalationTicket) (TicketReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Ticket)
	defer cancel()

	var out TicketReceipt
	if err := c.do(ctx, http.MethodPost, "/tickets", token, newTicketRequest(ticket), http.StatusCreated, &out); err != nil {
		return TicketReceipt{}, err
	}
	if out.TicketID == "" {
		return TicketReceipt{}, fmt.Errorf("%w: response missing ticket_id", ErrBackendStatus)
	}
	return out, nil
}

func (c *HTTPClient) TicketStatus(ctx context.Context, token, ticketID string) (TicketState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Ticket)
	defer cancel()

	var out TicketState
	path := "/tickets/" + url.PathEscape(ticketID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, http.StatusOK, &out); err != nil {
		return TicketState{}, err
	}
	return out, nil
}

func (c *HTTPClient) CancelTicket(ctx context.Context, token, ticketID string) (TicketState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Ticket)
	defer cancel()

	var out TicketState
	path := "/tickets/" + url.PathEscape(ticketID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, token, nil, http.StatusOK, &out); err != nil {
		return TicketState{}, err
	}
	return out, nil
}

func (c *HTTPClient) Audit(ctx context.Context, token string, entry AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Audit)
	defer cancel()

	return c.do(ctx, http.MethodPost, "/audit", token, entry, 0, nil)
}

// do sends one JSON request. A zero wantStatus accepts any 2xx; out may be nil.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case wantStatus != 0 && resp.StatusCode != wantStatus:
		return fmt.Errorf("%w: %s %s returned %d", ErrBackendStatus, method, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s returned %d", ErrBackendStatus, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
