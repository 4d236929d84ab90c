package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"astra-monitor/internal/models"
)

// Registry is the configured fleet: the ordered payload list and the
// metric type -> threshold mapping. It is loaded once at startup and
// treated as immutable for the life of the process.
type Registry struct {
	Payloads []models.Payload               `yaml:"payloads"`
	Metrics  map[string]models.MetricConfig `yaml:"metrics"`
}

// LoadRegistry reads and validates the registry YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	reg := &Registry{}
	if err := yaml.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	if len(reg.Payloads) == 0 {
		return nil, fmt.Errorf("registry has no payloads: %s", path)
	}
	if len(reg.Metrics) == 0 {
		return nil, fmt.Errorf("registry has no metrics: %s", path)
	}

	return reg, nil
}

// Threshold returns the configured threshold for a metric type.
// The second return value is false when the metric is not configured.
func (r *Registry) Threshold(metricType string) (float64, bool) {
	m, ok := r.Metrics[metricType]
	if !ok {
		return 0, false
	}
	return m.Threshold, true
}

// Metric returns the full metric configuration for a metric type.
func (r *Registry) Metric(metricType string) (models.MetricConfig, bool) {
	m, ok := r.Metrics[metricType]
	return m, ok
}

// MetricNames returns the configured metric types in sorted order, so
// iteration order is deterministic across cycles.
func (r *Registry) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PayloadBySCID returns the payload with the given SCID.
func (r *Registry) PayloadBySCID(scid int) (models.Payload, bool) {
	for _, p := range r.Payloads {
		if p.SCID == scid {
			return p, true
		}
	}
	return models.Payload{}, false
}
