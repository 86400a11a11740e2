package tenant

import (
	"context"
	"fmt"

	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/pkg/models"
)

// InstanceFetcher reads agent instance metadata from the platform backend.
type InstanceFetcher interface {
	GetInstance(ctx context.Context, instanceID string) (backend.AgentInstance, error)
}

// BackendLoader returns a Loader that resolves the caller's agent instance.
// An instance without any metadata is reported as ErrConfigurationMissing.
func BackendLoader(f InstanceFetcher) Loader {
	return func(ctx context.Context, companyID int64, auth models.AuthContext) (models.TenantAgentConfig, error) {
		if auth.AgentInstanceID == "" {
			return models.TenantAgentConfig{}, fmt.Errorf("company %d: no agent instance: %w", companyID, ErrConfigurationMissing)
		}
		inst, err := f.GetInstance(ctx, auth.AgentInstanceID)
		if err != nil {
			return models.TenantAgentConfig{}, fmt.Errorf("fetch agent instance %s: %w", auth.AgentInstanceID, err)
		}
		if inst.Empty() {
			return models.TenantAgentConfig{}, fmt.Errorf("company %d: empty agent instance: %w", companyID, ErrConfigurationMissing)
		}
		return inst.TenantConfig(companyID), nil
	}
}
