package retrieval

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/txdxai/sophia/pkg/models"
)

// Document categories used by the ranking heuristics.
const (
	CategoryConcepts   = "concepts"
	CategoryProcedures = "procedures"
	CategorySophia     = "sophia"
	CategoryAlerts     = "alerts"
	CategoryEscalation = "escalation"
	CategoryMetrics    = "metrics"
)

// defaultCorpus is served when no remote index is configured.
var defaultCorpus = []models.ScoredDocument{
	{
		Title:    "Resumen de SOPHIA",
		Content:  "SOPHIA es un agente de IA multi-tenant para operaciones de ciberseguridad. Puede analizar alertas de seguridad, proporcionar inteligencia de amenazas y coordinar la respuesta a incidentes.",
		Score:    0.95,
		Category: CategorySophia,
		Source:   "documentation",
	},
	{
		Title:    "Procedimientos de Bloqueo de IP",
		Content:  "Para bloquear una dirección IP, necesitas configurar reglas de firewall. Esta acción requiere aprobación de VictorIA para cumplir con las políticas de seguridad.",
		Score:    0.88,
		Category: CategoryProcedures,
		Source:   "security-procedures",
	},
	{
		Title:    "Fuentes de Alertas de Seguridad",
		Content:  "Las alertas de seguridad pueden obtenerse desde Palo Alto Networks, Splunk, Wazuh y otras herramientas de seguridad integradas.",
		Score:    0.82,
		Category: CategoryAlerts,
		Source:   "integrations",
	},
	{
		Title:    "Política de Escalación de Acciones de Seguridad",
		Content:  "Las acciones de seguridad de alto riesgo como cuarentena de dispositivos, aislamiento de red o apagado de sistemas requieren aprobación manual a través de escalación a VictorIA.",
		Score:    0.79,
		Category: CategoryEscalation,
		Source:   "policies",
	},
	{
		Title:    "Monitoreo de Sistemas",
		Content:  "Las métricas del sistema y datos de rendimiento pueden monitorearse a través de dashboards de Grafana. Las métricas clave incluyen CPU, memoria, uso de disco y throughput de red.",
		Score:    0.75,
		Category: CategoryMetrics,
		Source:   "monitoring",
	},
	{
		Title:    "Definición de Firewall",
		Content:  "Un firewall es un sistema de seguridad de red que inspecciona el tráfico entrante y saliente y lo permite o bloquea según un conjunto de reglas. Separa redes de confianza de redes externas y es la primera línea de defensa perimetral.",
		Score:    0.90,
		Category: CategoryConcepts,
		Source:   "glossary",
	},
}

// domainKeywords boosts documents whose category matches a topic named in the query.
var domainKeywords = []struct {
	needle   string
	category string
}{
	{"metric", CategoryMetrics},
	{"métrica", CategoryMetrics},
	{"alert", CategoryAlerts},
	{"escal", CategoryEscalation},
	{"sophia", CategorySophia},
}

// explanatoryPatterns mark a definition-style question.
var explanatoryPatterns = []string{
	"what is", "explain", "how does", "define",
	"qué es", "que es", "explica", "cómo funciona",
}

const (
	fullQueryBonus   = 10
	domainBonus      = 5
	conceptBonus     = 15
	procedurePenalty = 5
)

// LocalRetriever ranks an in-memory corpus with keyword heuristics.
type LocalRetriever struct {
	corpus []models.ScoredDocument
}

// NewLocalRetriever returns a retriever over the built-in corpus.
func NewLocalRetriever() *LocalRetriever {
	return &LocalRetriever{corpus: defaultCorpus}
}

// NewLocalRetrieverWithCorpus returns a retriever over docs.
func NewLocalRetrieverWithCorpus(docs []models.ScoredDocument) *LocalRetriever {
	return &LocalRetriever{corpus: append([]models.ScoredDocument(nil), docs...)}
}

func (l *LocalRetriever) Name() string { return "local" }

// Search scores every document and returns the topK with a positive score,
// best first. Ties keep corpus order. When nothing scores, the first topK
// documents are returned unranked.
func (l *LocalRetriever) Search(_ context.Context, query string, topK int) []models.ScoredDocument {
	if topK <= 0 {
		topK = DefaultTopK
	}
	q := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		doc   models.ScoredDocument
		score int
	}
	var hits []scored
	for _, d := range l.corpus {
		if s := score(q, d); s > 0 {
			hits = append(hits, scored{doc: d, score: s})
		}
	}

	if len(hits) == 0 {
		n := min(topK, len(l.corpus))
		return append([]models.ScoredDocument(nil), l.corpus[:n]...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	n := min(topK, len(hits))
	out := make([]models.ScoredDocument, n)
	for i := range out {
		out[i] = hits[i].doc
		out[i].Score = float64(hits[i].score)
	}
	return out
}

// score is the match count plus the phrase, domain and explanatory
// adjustments. Adjustments apply even when no query word matched.
func score(q string, d models.ScoredDocument) int {
	if q == "" {
		return 0
	}
	text := strings.ToLower(d.Title + " " + d.Content)

	s := 0
	for _, w := range strings.Fields(q) {
		w = strings.Trim(w, "¿?¡!.,;:")
		if utf8.RuneCountInString(w) > 2 && strings.Contains(text, w) {
			s++
		}
	}

	if strings.Contains(text, q) {
		s += fullQueryBonus
	}
	for _, k := range domainKeywords {
		if d.Category == k.category && strings.Contains(q, k.needle) {
			s += domainBonus
			break
		}
	}
	if isExplanatory(q) {
		switch d.Category {
		case CategoryConcepts:
			s += conceptBonus
		case CategoryProcedures:
			s -= procedurePenalty
		}
	}
	return s
}

func isExplanatory(q string) bool {
	for _, p := range explanatoryPatterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}
