package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"

	mw "github.com/txdxai/sophia/internal/api/middleware"
	"github.com/txdxai/sophia/internal/api/response"
	"github.com/txdxai/sophia/internal/orchestrator"
	"github.com/txdxai/sophia/internal/tenant"
	"github.com/txdxai/sophia/pkg/models"
)

// ConfigService reports and refreshes a tenant's agent configuration.
type ConfigService interface {
	TestConfig(ctx context.Context, companyID int64, auth models.AuthContext) orchestrator.ConfigStatus
	RefreshKnowledge(companyID int64, vectorStoreID string) orchestrator.RefreshResult
}

// TenantCache is the slice of the tenant cache the admin handlers need.
type TenantCache interface {
	Stats() tenant.Stats
	Invalidate(companyID int64) bool
}

// CredentialCache drops cached agent credentials for a company.
type CredentialCache interface {
	Forget(ctx context.Context, companyID int64) (int, error)
}

// NewTestConfigHandler returns an http.HandlerFunc for POST /config/test.
func NewTestConfigHandler(svc ConfigService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		response.JSON(w, svc.TestConfig(r.Context(), companyID, mw.GetAuth(r)))
	}
}

// NewRefreshKnowledgeHandler returns an http.HandlerFunc for POST /knowledge/refresh.
func NewRefreshKnowledgeHandler(svc ConfigService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		var req struct {
			VectorStoreID string `json:"vectorStoreId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		response.Accepted(w, svc.RefreshKnowledge(companyID, req.VectorStoreID))
	}
}

// NewCacheStatsHandler returns an http.HandlerFunc for GET /cache/stats.
// Other companies' ids are not disclosed; the caller only learns whether its
// own entry is cached.
func NewCacheStatsHandler(tenants TenantCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		st := tenants.Stats()
		response.JSON(w, map[string]any{
			"entries":       st.Entries,
			"hits":          st.Hits,
			"misses":        st.Misses,
			"load_failures": st.LoadFailures,
			"ttl_seconds":   st.TTLSeconds,
			"cached":        slices.Contains(st.Companies, companyID),
		})
	}
}

// NewCacheInvalidateHandler returns an http.HandlerFunc for POST /cache/invalidate.
// Only the caller's own company is invalidated.
func NewCacheInvalidateHandler(tenants TenantCache, creds CredentialCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		removed := tenants.Invalidate(companyID)
		var forgotten int
		if creds != nil {
			n, err := creds.Forget(r.Context(), companyID)
			if err != nil {
				slog.Warn("credential cache invalidation failed", "error", err, "company_id", companyID)
			}
			forgotten = n
		}

		response.JSON(w, map[string]any{
			"companyId":            companyID,
			"configInvalidated":    removed,
			"credentialsForgotten": forgotten,
		})
	}
}
