// Package metrics exposes Prometheus metrics for rasterman.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Config struct {
	Path string
	// Textfile, when set, is where WriteTextfile dumps every metric for a
	// node_exporter textfile collector. Used by one-shot CLI runs.
	Textfile string
	Build    BuildInfo
}

// Provider serves the process-wide metrics recorded by the observability
// package together with the build info held in its own registry.
type Provider struct {
	cfg       Config
	reg       *prometheus.Registry
	buildInfo *prometheus.GaugeVec
}

func Init(cfg Config) *Provider {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	reg := prometheus.NewRegistry()

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	reg.MustRegister(build)
	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build.WithLabelValues(v.Version, v.Revision, v.Branch, v.BuildDate).Set(1)

	return &Provider{cfg: cfg, reg: reg, buildInfo: build}
}

// Gatherer merges the default registry, which carries the Go and process
// collectors and every observability series, with the provider's registry.
func (p *Provider) Gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{prometheus.DefaultGatherer, p.reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.Gatherer(), promhttp.HandlerOpts{})
}

func (p *Provider) Path() string { return p.cfg.Path }

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// WriteTextfile writes the current metrics to the configured textfile. It is
// a no-op when no textfile is configured.
func (p *Provider) WriteTextfile() error {
	if p.cfg.Textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(p.cfg.Textfile, p.Gatherer()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
