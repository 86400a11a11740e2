// Package retrieval finds knowledge-base excerpts relevant to a question and
// formats them as bounded context for a reply.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/txdxai/sophia/internal/metrics"
	"github.com/txdxai/sophia/pkg/models"
)

// DefaultTopK is the number of documents used to build context.
const DefaultTopK = 5

// NoResultsMessage is returned by GetContext when nothing was found.
const NoResultsMessage = "No se encontró información relevante en la base de conocimiento."

const contextHeader = "**Información Relevante:**\n"

// Retriever ranks knowledge-base documents against a query. Implementations
// never fail; remote errors degrade to the local corpus.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) []models.ScoredDocument
	Name() string
}

// New picks the retriever for a tenant: the remote index when search
// credentials are present, the local corpus otherwise.
func New(cfg models.TenantAgentConfig, timeout time.Duration, m *metrics.Metrics) Retriever {
	local := NewLocalRetriever()
	if !cfg.HasRAG() {
		return local
	}

	r, err := NewSearchRetriever(cfg, timeout, local, m)
	if err != nil {
		slog.Warn("search retriever unavailable, using local corpus",
			"company_id", cfg.CompanyID, "error", err)
		return local
	}
	return r
}

// GetContext searches r and renders at most maxTokens*4 characters (runes) of
// excerpts under a fixed header. Excerpts are added in rank order and the
// first one that would overflow the budget stops the output.
func GetContext(ctx context.Context, r Retriever, query string, maxTokens int) string {
	docs := r.Search(ctx, query, DefaultTopK)
	if len(docs) == 0 {
		return NoResultsMessage
	}

	budget := maxTokens * 4
	parts := []string{contextHeader}
	used := 0
	for _, d := range docs {
		excerpt := fmt.Sprintf("\n**%s** (relevance: %.2f)\n%s\n", d.Title, d.Score, d.Content)
		n := utf8.RuneCountInString(excerpt)
		if used+n > budget {
			break
		}
		parts = append(parts, excerpt)
		used += n
	}

	return strings.Join(parts, "\n")
}
