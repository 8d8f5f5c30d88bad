// Package metrics holds the process-wide gauges and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	// CPUUsage is the gauge written by the CPU sampler.
	CPUUsage = "cpu_usage"

	// ContentType is the media type of Serialize output.
	ContentType = "text/plain; version=0.0.4"
)

var (
	// ErrUnknownMetric means a metric was used without being registered at
	// startup. It is a configuration error, not a runtime condition.
	ErrUnknownMetric = errors.New("metric not registered")

	// ErrSerialization wraps failures to gather or encode metrics.
	ErrSerialization = errors.New("metrics serialization failed")
)

// Registry is a set of named gauges backed by a prometheus.Registry.
type Registry struct {
	reg *prometheus.Registry

	mu     sync.RWMutex
	gauges map[string]prometheus.Gauge
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		reg:    prometheus.NewRegistry(),
		gauges: make(map[string]prometheus.Gauge),
	}
}

// RegisterGauge creates the gauge name. It must be called before the
// sampler or the HTTP layer touch the registry.
func (r *Registry) RegisterGauge(name, help string) error {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gauges[name]; ok {
		return fmt.Errorf("gauge %q already registered", name)
	}
	if err := r.reg.Register(g); err != nil {
		return fmt.Errorf("registering gauge %q: %w", name, err)
	}
	r.gauges[name] = g
	return nil
}

// Set overwrites the current value of a registered gauge.
func (r *Registry) Set(name string, value float64) error {
	g, err := r.gauge(name)
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

// Get returns the latest value of a registered gauge, 0 if it was never set.
func (r *Registry) Get(name string) (float64, error) {
	g, err := r.gauge(name)
	if err != nil {
		return 0, err
	}
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0, fmt.Errorf("reading gauge %q: %w", name, err)
	}
	return m.GetGauge().GetValue(), nil
}

// Serialize renders every registered metric family, sorted by name, in the
// text exposition format. Each value is read atomically; there is no
// cross-metric snapshot.
func (r *Registry) Serialize() ([]byte, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: gather: %v", ErrSerialization, err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSerialization, mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// Prometheus exposes the underlying registry for collectors owned by other
// packages, such as HTTP request instrumentation.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

func (r *Registry) gauge(name string) (prometheus.Gauge, error) {
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return g, nil
}
