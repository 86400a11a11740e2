// Package tenant builds and caches the per-company agent handle: which agent
// answers, in which mode, and which knowledge retriever it searches.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/txdxai/sophia/internal/metrics"
	"github.com/txdxai/sophia/internal/retrieval"
	"github.com/txdxai/sophia/pkg/models"
	"golang.org/x/sync/singleflight"
)

// ErrConfigurationMissing is logged when a tenant's configuration cannot be
// loaded. The caller still receives a usable mock handle.
var ErrConfigurationMissing = errors.New("tenant configuration missing")

// DefaultTTL is how long a loaded handle is reused.
const DefaultTTL = time.Hour

// Mode is how the tenant's agent runs.
type Mode string

const (
	ModeAzure Mode = "azure"
	ModeMock  Mode = "mock"
)

// Handle is an immutable, ready-to-use view of one tenant's agent.
type Handle struct {
	CompanyID int64
	AgentID   string
	Mode      Mode
	Config    models.TenantAgentConfig
	// Retriever is nil when knowledge search is disabled for the tenant.
	Retriever retrieval.Retriever
	Degraded  bool
	LoadedAt  time.Time
}

// Loader fetches a tenant's agent configuration.
type Loader func(ctx context.Context, companyID int64, auth models.AuthContext) (models.TenantAgentConfig, error)

// RetrieverFactory picks the retriever for a configuration.
type RetrieverFactory func(cfg models.TenantAgentConfig) retrieval.Retriever

// Stats is a point-in-time summary of the cache.
type Stats struct {
	Entries      int     `json:"entries"`
	Companies    []int64 `json:"companies"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	LoadFailures int64   `json:"load_failures"`
	TTLSeconds   int64   `json:"ttl_seconds"`
}

// Cache holds one handle per company. Entries expire lazily after the TTL.
// Concurrent first requests for a company share a single load.
type Cache struct {
	load       Loader
	retrievers RetrieverFactory
	ttl        time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time

	mu       sync.RWMutex
	entries  map[int64]Handle
	gen      uint64
	hits     int64
	misses   int64
	failures int64

	group singleflight.Group
}

// NewCache creates a new Cache. A nil retrievers factory uses retrieval.New
// with default settings.
func NewCache(load Loader, retrievers RetrieverFactory, ttl time.Duration, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if retrievers == nil {
		retrievers = func(cfg models.TenantAgentConfig) retrieval.Retriever {
			return retrieval.New(cfg, 0, m)
		}
	}
	return &Cache{
		load:       load,
		retrievers: retrievers,
		ttl:        ttl,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		entries:    make(map[int64]Handle),
	}
}

// Get returns the handle for companyID, loading it on a miss. It never
// fails: a load error yields an uncached mock handle with Degraded set.
func (c *Cache) Get(ctx context.Context, companyID int64, auth models.AuthContext) Handle {
	if h, ok := c.lookup(companyID, true); ok {
		c.metrics.TenantLookup("hit")
		return h
	}
	c.metrics.TenantLookup("miss")

	v, _, _ := c.group.Do(strconv.FormatInt(companyID, 10), func() (any, error) {
		if h, ok := c.lookup(companyID, false); ok {
			return h, nil
		}
		return c.loadHandle(context.WithoutCancel(ctx), companyID, auth), nil
	})
	return v.(Handle)
}

func (c *Cache) lookup(companyID int64, count bool) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.entries[companyID]
	if ok && c.now().Sub(h.LoadedAt) >= c.ttl {
		delete(c.entries, companyID)
		ok = false
	}
	switch {
	case !count:
	case ok:
		c.hits++
	default:
		c.misses++
	}
	return h, ok
}

func (c *Cache) loadHandle(ctx context.Context, companyID int64, auth models.AuthContext) Handle {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	cfg, err := c.load(ctx, companyID, auth)
	if err != nil {
		slog.Warn("tenant configuration unavailable, using mock agent",
			"company_id", companyID,
			"error", fmt.Errorf("%w: %w", ErrConfigurationMissing, err),
		)
		c.mu.Lock()
		c.failures++
		c.mu.Unlock()
		c.metrics.TenantLookup("load_failure")

		h := c.build(models.TenantAgentConfig{CompanyID: companyID})
		h.Degraded = true
		return h
	}

	cfg.CompanyID = companyID
	h := c.build(cfg)

	c.mu.Lock()
	if c.gen == gen {
		c.entries[companyID] = h
	}
	c.mu.Unlock()

	slog.Info("tenant agent loaded", "company_id", companyID, "agent_id", h.AgentID, "mode", h.Mode)
	return h
}

func (c *Cache) build(cfg models.TenantAgentConfig) Handle {
	h := Handle{
		CompanyID: cfg.CompanyID,
		Mode:      ModeMock,
		AgentID:   fmt.Sprintf("mock-agent-%d", cfg.CompanyID),
		Config:    cfg,
		Retriever: c.retrievers(cfg),
		LoadedAt:  c.now(),
	}
	if cfg.HasLLM() && cfg.ProjectID != "" {
		h.Mode = ModeAzure
		h.AgentID = cfg.AgentID
		if h.AgentID == "" {
			h.AgentID = fmt.Sprintf("azure-agent-%d", cfg.CompanyID)
		}
	}
	return h
}

// Invalidate drops the entry for companyID and reports whether one existed.
func (c *Cache) Invalidate(companyID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[companyID]
	delete(c.entries, companyID)
	c.gen++
	return ok
}

// InvalidateAll drops every entry and returns how many were removed.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[int64]Handle)
	c.gen++
	return n
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	companies := make([]int64, 0, len(c.entries))
	for id := range c.entries {
		companies = append(companies, id)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i] < companies[j] })

	return Stats{
		Entries:      len(c.entries),
		Companies:    companies,
		Hits:         c.hits,
		Misses:       c.misses,
		LoadFailures: c.failures,
		TTLSeconds:   int64(c.ttl / time.Second),
	}
}
