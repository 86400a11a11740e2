package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/txdxai/sophia/internal/session"
	"github.com/txdxai/sophia/internal/tenant"
	"github.com/txdxai/sophia/pkg/models"
)

// Capabilities lists what a tenant's agent can do.
type Capabilities struct {
	IntentRouting   bool `json:"intent_routing"`
	VictoriaHandoff bool `json:"victoria_handoff"`
	RAGSearch       bool `json:"rag_search"`
	SecurityTools   bool `json:"security_tools"`
}

// ConfigStatus reports whether a tenant's provider credentials are usable.
type ConfigStatus struct {
	CompanyID        int64        `json:"company_id"`
	AgentInstanceID  string       `json:"agent_instance_id"`
	AgentID          string       `json:"agent_id"`
	OpenAIConfigured bool         `json:"azure_openai_configured"`
	SearchConfigured bool         `json:"azure_search_configured"`
	DeploymentModel  string       `json:"deployment_model"`
	Status           string       `json:"status"`
	Degraded         bool         `json:"degraded"`
	Capabilities     Capabilities `json:"capabilities"`
	Message          string       `json:"message"`
}

// TestConfig reloads the tenant's configuration and reports its capability.
func (o *Orchestrator) TestConfig(ctx context.Context, companyID int64, auth models.AuthContext) ConfigStatus {
	o.tenants.Invalidate(companyID)
	h := o.tenants.Get(ctx, companyID, auth)

	cfg := h.Config
	st := ConfigStatus{
		CompanyID:        companyID,
		AgentInstanceID:  auth.AgentInstanceID,
		AgentID:          h.AgentID,
		OpenAIConfigured: cfg.HasLLM(),
		SearchConfigured: cfg.HasRAG(),
		DeploymentModel:  cfg.OpenAIDeployment,
		Status:           "mock_mode",
		Degraded:         h.Degraded,
		Capabilities: Capabilities{
			IntentRouting:   true,
			VictoriaHandoff: true,
			RAGSearch:       cfg.HasRAG(),
			SecurityTools:   true,
		},
		Message: "Running in mock mode - configure Azure credentials for full functionality",
	}
	if st.DeploymentModel == "" {
		st.DeploymentModel = "not_set"
	}
	if h.Mode == tenant.ModeAzure {
		st.Status = "ready"
		st.Message = "All Azure credentials configured - full functionality available"
	}
	return st
}

// RefreshResult acknowledges a knowledge refresh request.
type RefreshResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	CompanyID     int64  `json:"company_id"`
	VectorStoreID string `json:"vector_store_id"`
}

// RefreshKnowledge drops the cached tenant handle so the next message picks
// up new credentials and index settings.
func (o *Orchestrator) RefreshKnowledge(companyID int64, vectorStoreID string) RefreshResult {
	o.tenants.Invalidate(companyID)
	slog.Info("knowledge refresh requested", "company_id", companyID, "vector_store_id", vectorStoreID)
	return RefreshResult{
		Success:       true,
		Message:       "Knowledge refresh initiated",
		CompanyID:     companyID,
		VectorStoreID: vectorStoreID,
	}
}

// Thread returns a conversation owned by companyID.
func (o *Orchestrator) Thread(companyID int64, threadID string) (models.Thread, error) {
	th, err := o.sessions.Get(threadID)
	if err != nil {
		return models.Thread{}, err
	}
	if th.CompanyID != companyID {
		return models.Thread{}, fmt.Errorf("%w: %s", session.ErrThreadNotFound, threadID)
	}
	return th, nil
}

// DeleteThread removes a conversation owned by companyID.
func (o *Orchestrator) DeleteThread(companyID int64, threadID string) error {
	if _, err := o.Thread(companyID, threadID); err != nil {
		return err
	}
	o.sessions.Delete(threadID)
	return nil
}

// Threads lists the conversation ids of companyID.
func (o *Orchestrator) Threads(companyID int64) []string {
	return o.sessions.ListByCompany(companyID)
}
