package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/txdxai/sophia/internal/metrics"
	"github.com/txdxai/sophia/pkg/models"
)

// DefaultSearchTimeout bounds one remote search.
const DefaultSearchTimeout = 10 * time.Second

// SearchRetriever queries a per-tenant Elasticsearch index and falls back to
// a local retriever on any failure.
type SearchRetriever struct {
	es       *elasticsearch.Client
	index    string
	timeout  time.Duration
	fallback Retriever
	metrics  *metrics.Metrics
}

// NewSearchRetriever builds a remote retriever for cfg.
func NewSearchRetriever(cfg models.TenantAgentConfig, timeout time.Duration, fallback Retriever, m *metrics.Metrics) (*SearchRetriever, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.SearchEndpoint},
		APIKey:    cfg.SearchKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	if fallback == nil {
		fallback = NewLocalRetriever()
	}
	return &SearchRetriever{
		es:       es,
		index:    IndexName(cfg.CompanyID, cfg.VectorStoreID),
		timeout:  timeout,
		fallback: fallback,
		metrics:  m,
	}, nil
}

// IndexName returns the index holding a tenant's knowledge base.
func IndexName(companyID int64, vectorStoreID string) string {
	if vectorStoreID == "" {
		vectorStoreID = "default"
	}
	return fmt.Sprintf("company-%d-%s", companyID, vectorStoreID)
}

func (s *SearchRetriever) Name() string { return "elasticsearch" }

func (s *SearchRetriever) Search(ctx context.Context, query string, topK int) []models.ScoredDocument {
	if topK <= 0 {
		topK = DefaultTopK
	}
	docs, err := s.search(ctx, query, topK)
	if err != nil {
		slog.Warn("remote knowledge search failed, using local corpus",
			"index", s.index, "error", err)
		s.metrics.RetrievalFallback()
		return s.fallback.Search(ctx, query, topK)
	}
	return docs
}

func (s *SearchRetriever) search(ctx context.Context, query string, topK int) ([]models.ScoredDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"size": topK,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Title    string `json:"title"`
					Content  string `json:"content"`
					Category string `json:"category"`
					Source   string `json:"source"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	docs := make([]models.ScoredDocument, 0, len(response.Hits.Hits))
	for _, h := range response.Hits.Hits {
		category := h.Source.Category
		if category == "" {
			category = "general"
		}
		source := h.Source.Source
		if source == "" {
			source = "unknown"
		}
		docs = append(docs, models.ScoredDocument{
			Title:    h.Source.Title,
			Content:  h.Source.Content,
			Score:    h.Score,
			Category: category,
			Source:   source,
		})
	}
	return docs, nil
}

// Compile-time checks.
var (
	_ Retriever = (*SearchRetriever)(nil)
	_ Retriever = (*LocalRetriever)(nil)
)
