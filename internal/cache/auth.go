package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/txdxai/sophia/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// DefaultAuthTTL keeps exchanged agent tokens a little under the backend's one hour expiry.
const DefaultAuthTTL = 55 * time.Minute

type authEntry struct {
	KeyHash         string    `json:"key_hash"`
	AccessToken     string    `json:"access_token"`
	AgentInstanceID string    `json:"agent_instance_id"`
	CachedAt        time.Time `json:"cached_at"`
}

// AuthCache stores exchanged agent credentials keyed by company and access key prefix.
// An entry is only returned to a caller presenting the same access key.
type AuthCache struct {
	cache Cache
	ttl   time.Duration
	cost  int
}

// NewAuthCache creates an AuthCache. Zero ttl or cost select the defaults.
func NewAuthCache(c Cache, ttl time.Duration, cost int) *AuthCache {
	if ttl <= 0 {
		ttl = DefaultAuthTTL
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthCache{cache: c, ttl: ttl, cost: cost}
}

// Lookup returns the cached credentials for accessKey, if any.
func (a *AuthCache) Lookup(ctx context.Context, companyID int64, accessKey string) (models.AuthContext, bool, error) {
	raw, found, err := a.cache.Get(ctx, AgentAuthKey(companyID, KeyPrefix(accessKey)))
	if err != nil || !found {
		return models.AuthContext{}, false, err
	}

	var entry authEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.AuthContext{}, false, fmt.Errorf("decode auth entry: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(entry.KeyHash), keyDigest(accessKey)) != nil {
		return models.AuthContext{}, false, nil
	}
	return models.AuthContext{AccessToken: entry.AccessToken, AgentInstanceID: entry.AgentInstanceID}, true, nil
}

// Store caches auth for accessKey.
func (a *AuthCache) Store(ctx context.Context, companyID int64, accessKey string, auth models.AuthContext) error {
	hash, err := bcrypt.GenerateFromPassword(keyDigest(accessKey), a.cost)
	if err != nil {
		return fmt.Errorf("hash access key: %w", err)
	}
	raw, err := json.Marshal(authEntry{
		KeyHash:         string(hash),
		AccessToken:     auth.AccessToken,
		AgentInstanceID: auth.AgentInstanceID,
		CachedAt:        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode auth entry: %w", err)
	}
	return a.cache.Set(ctx, AgentAuthKey(companyID, KeyPrefix(accessKey)), raw, a.ttl)
}

// Forget drops every cached credential for a company.
func (a *AuthCache) Forget(ctx context.Context, companyID int64) (int, error) {
	return a.cache.DeletePrefix(ctx, AgentAuthCompanyPrefix(companyID))
}

// keyDigest keeps bcrypt input under its 72 byte limit.
func keyDigest(accessKey string) []byte {
	sum := sha256.Sum256([]byte(accessKey))
	return []byte(hex.EncodeToString(sum[:]))
}
