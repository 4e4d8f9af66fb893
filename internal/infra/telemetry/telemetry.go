package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arklim/workspace-directory/internal/core/port"
	"github.com/arklim/workspace-directory/internal/infra/config"
)

const metricsNamespace = "directory"

// Provider owns the Prometheus registry and the directory service counters.
type Provider struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	enabled    bool
}

// Attach builds a provider with its own registry. Runtime collectors are
// registered alongside the directory counters.
func Attach(cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "operations_total",
		Help:      "Directory service operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	if err := registry.Register(operations); err != nil {
		return nil, fmt.Errorf("register operations collector: %w", err)
	}

	return &Provider{
		registry:   registry,
		operations: operations,
		enabled:    cfg.Telemetry.MetricsEnabled,
	}, nil
}

// RecordOperation increments the counter for a finished directory operation.
func (p *Provider) RecordOperation(operation, outcome string) {
	if p == nil || p.operations == nil {
		return
	}
	p.operations.WithLabelValues(operation, outcome).Inc()
}

// Operations exposes the operation counter for inspection.
func (p *Provider) Operations() *prometheus.CounterVec {
	return p.operations
}

// Registerer is used by the HTTP metrics middleware.
func (p *Provider) Registerer() prometheus.Registerer {
	return p.registry
}

func (p *Provider) Enabled() bool {
	return p != nil && p.enabled
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

var _ port.DirectoryMetrics = (*Provider)(nil)
