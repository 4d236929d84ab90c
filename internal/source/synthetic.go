package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"astra-monitor/internal/config"
	"astra-monitor/internal/models"
)

// SyntheticSource generates deterministic-shaped random readings from the
// registry: one value per selected payload/metric, around the metric's
// baseline. BREACH readings are always included; NORMAL readings only
// with probability normalSampleRate, to avoid flooding the store with
// non-events.
type SyntheticSource struct {
	registry         *config.Registry
	normalSampleRate float64
	logger           *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSyntheticSource creates a synthetic source.
func NewSyntheticSource(registry *config.Registry, normalSampleRate float64, logger *zap.Logger) *SyntheticSource {
	return &SyntheticSource{
		registry:         registry,
		normalSampleRate: normalSampleRate,
		logger:           logger,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		now:              time.Now,
	}
}

// MonitorAll generates readings for every configured metric and payload.
func (s *SyntheticSource) MonitorAll(ctx context.Context) ([]models.Reading, error) {
	return s.generate(s.registry.MetricNames(), nil), nil
}

// Monitor generates readings for one metric type, optionally filtered to
// a single payload. An unconfigured metric type falls back to a single
// randomly chosen configured metric.
func (s *SyntheticSource) Monitor(ctx context.Context, metricType string, scid *int) ([]models.Reading, error) {
	names := s.registry.MetricNames()

	var selected []string
	if _, ok := s.registry.Metric(metricType); ok {
		selected = []string{metricType}
	} else {
		s.mu.Lock()
		selected = []string{names[s.rng.Intn(len(names))]}
		s.mu.Unlock()
		s.logger.Debug("Unknown metric type, sampling a random configured metric",
			zap.String("requested", metricType),
			zap.String("selected", selected[0]),
		)
	}

	return s.generate(selected, scid), nil
}

func (s *SyntheticSource) generate(metricNames []string, scid *int) []models.Reading {
	payloads := s.registry.Payloads
	if scid != nil {
		payloads = nil
		if p, ok := s.registry.PayloadBySCID(*scid); ok {
			payloads = []models.Payload{p}
		}
	}
	if len(payloads) == 0 {
		return []models.Reading{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	readings := []models.Reading{}
	for _, payload := range payloads {
		for _, name := range metricNames {
			metric, ok := s.registry.Metric(name)
			if !ok {
				continue
			}

			value := metric.BaselineOrDefault() + s.rng.Float64()*metric.VariationOrDefault()

			status := models.StatusNormal
			if value > metric.Threshold {
				status = models.StatusBreach
			}

			// Breaches always surface; normal readings are sampled.
			if status == models.StatusNormal && s.rng.Float64() >= s.normalSampleRate {
				continue
			}

			readings = append(readings, models.Reading{
				SCID:       payload.SCID,
				MetricType: name,
				Value:      value,
				Threshold:  metric.Threshold,
				Status:     status,
				Timestamp:  s.now().UTC(),
			})
		}
	}

	return readings
}
