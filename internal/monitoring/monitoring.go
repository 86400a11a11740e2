// Package monitoring provides the read-only security tool feeds consulted for
// informational questions. The feeds are simulated; no external system is
// contacted.
package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Source is one monitoring feed.
type Source interface {
	Name() string
	// Matches reports whether a lower-cased message asks for this feed.
	Matches(lower string) bool
	Fetch(ctx context.Context, query string) (any, error)
}

// Registry holds the configured sources in a fixed order.
type Registry struct {
	sources []Source
}

// NewRegistry returns a registry over sources, preserving their order.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// Default returns the built-in mock sources driven by now.
func Default(now func() time.Time) *Registry {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return NewRegistry(
		keywordSource{name: "palo_alto", keywords: []string{"alert", "palo"}, fetch: paloAltoAlerts(now)},
		keywordSource{name: "splunk", keywords: []string{"log", "splunk"}, fetch: splunkLogs(now, 5)},
		keywordSource{name: "grafana", keywords: []string{"metric", "grafana"}, fetch: grafanaMetrics(now)},
		keywordSource{name: "wazuh", keywords: []string{"wazuh"}, fetch: wazuhAlerts(now)},
		keywordSource{name: "meraki", keywords: []string{"meraki", "network"}, fetch: merakiStatus(now)},
	)
}

// Result is the outcome of Collect: source names in order and their data.
type Result struct {
	Sources []string
	Data    map[string]any
}

// Collect queries every source that matches message. A failing source is
// skipped and reported in the returned error list.
func (r *Registry) Collect(ctx context.Context, message string) (Result, []error) {
	lower := strings.ToLower(message)
	res := Result{Sources: []string{}, Data: map[string]any{}}
	var errs []error

	for _, s := range r.sources {
		if !s.Matches(lower) {
			continue
		}
		data, err := s.Fetch(ctx, message)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		res.Sources = append(res.Sources, s.Name())
		res.Data[s.Name()] = data
	}
	return res, errs
}

type keywordSource struct {
	name     string
	keywords []string
	fetch    func(ctx context.Context, query string) (any, error)
}

func (k keywordSource) Name() string { return k.name }

func (k keywordSource) Matches(lower string) bool {
	for _, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (k keywordSource) Fetch(ctx context.Context, query string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return k.fetch(ctx, query)
}

// Sources returns the registered sources in order.
func (r *Registry) Sources() []Source {
	return append([]Source(nil), r.sources...)
}
