package middleware

import (
	"context"
	"net/http"

	"github.com/txdxai/sophia/pkg/models"
)

type contextKey string

const (
	companyIDKey contextKey = "company_id"
	authKey      contextKey = "agent_auth"
)

// SetCompanyID stores the authenticated company in ctx.
func SetCompanyID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, companyIDKey, id)
}

// GetCompanyID returns the authenticated company for r.
func GetCompanyID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(companyIDKey).(int64)
	return id, ok
}

// SetAuth stores the exchanged agent credentials in ctx.
func SetAuth(ctx context.Context, auth models.AuthContext) context.Context {
	return context.WithValue(ctx, authKey, auth)
}

// GetAuth returns the agent credentials for r, zero-valued when absent.
func GetAuth(r *http.Request) models.AuthContext {
	auth, _ := r.Context().Value(authKey).(models.AuthContext)
	return auth
}
