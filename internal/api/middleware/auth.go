package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/txdxai/sophia/internal/api/response"
	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/internal/cache"
	"github.com/txdxai/sophia/pkg/models"
)

// CompanyHeader carries the calling tenant's numeric company id.
const CompanyHeader = "X-Company-ID"

// Authenticator exchanges an agent access key for platform credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, companyID int64, accessKey string) (backend.AuthResult, error)
}

// Auth provides agent authentication middleware.
type Auth struct {
	backend Authenticator
	cache   *cache.AuthCache
}

// NewAuth creates a new Auth middleware. A nil cache exchanges the key on every request.
func NewAuth(b Authenticator, c *cache.AuthCache) *Auth {
	return &Auth{backend: b, cache: c}
}

// Authenticate validates X-Company-ID and the Bearer access key, exchanging
// the key with the backend unless a matching exchange is cached. It sets the
// company id and agent credentials in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(CompanyHeader)), 10, 64)
		if err != nil || companyID <= 0 {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "Missing or invalid X-Company-ID header", nil)
			return
		}

		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		ctx := r.Context()
		auth, ok := a.cached(ctx, companyID, rawKey)
		if !ok {
			res, err := a.backend.Authenticate(ctx, companyID, rawKey)
			switch {
			case errors.Is(err, backend.ErrUnauthorized):
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Invalid agent access key", nil)
				return
			case err != nil:
				slog.Error("agent authentication failed", "error", err, "company_id", companyID)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to validate agent access key", nil)
				return
			}
			auth = models.AuthContext{AccessToken: res.AccessToken, AgentInstanceID: res.AgentInstanceID}
			a.remember(ctx, companyID, rawKey, auth)
		}

		ctx = SetCompanyID(ctx, companyID)
		ctx = SetAuth(ctx, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) cached(ctx context.Context, companyID int64, rawKey string) (models.AuthContext, bool) {
	if a.cache == nil {
		return models.AuthContext{}, false
	}
	auth, found, err := a.cache.Lookup(ctx, companyID, rawKey)
	if err != nil {
		slog.Warn("auth cache lookup failed", "error", err, "company_id", companyID)
		return models.AuthContext{}, false
	}
	return auth, found
}

func (a *Auth) remember(ctx context.Context, companyID int64, rawKey string, auth models.AuthContext) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Store(ctx, companyID, rawKey, auth); err != nil {
		slog.Warn("auth cache store failed", "error", err, "company_id", companyID)
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
