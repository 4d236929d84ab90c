package evaluator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"astra-monitor/internal/config"
	"astra-monitor/internal/models"
)

// Evaluate maps a reading value and its threshold to a status.
// BREACH only on strict inequality: a value exactly equal to the
// threshold is NORMAL.
func Evaluate(value, threshold float64) models.Status {
	if value > threshold {
		return models.StatusBreach
	}
	return models.StatusNormal
}

// EventWriter appends evaluated events to the store.
type EventWriter interface {
	InsertEvent(ctx context.Context, event *models.Event) (int64, error)
}

// Notifier publishes breach events to downstream consumers.
type Notifier interface {
	NotifyBreach(ctx context.Context, event *models.Event) error
}

// Checker evaluates batches of readings against the registry and
// persists the outcomes. Failures are isolated per reading: a
// configuration gap or persistence failure skips that reading and the
// batch continues.
type Checker struct {
	registry *config.Registry
	store    EventWriter
	notifier Notifier
	logger   *zap.Logger
}

// NewChecker creates a checker. notifier may be nil when breach
// publication is disabled.
func NewChecker(registry *config.Registry, store EventWriter, notifier Notifier, logger *zap.Logger) *Checker {
	return &Checker{
		registry: registry,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// CheckReadings evaluates and persists a batch of readings, returning
// the events that were successfully recorded. The threshold is always
// resolved from the current registry so it is captured as-of evaluation
// time; a reading whose metric type has no configured threshold is
// skipped and reported as a configuration gap.
func (c *Checker) CheckReadings(ctx context.Context, readings []models.Reading) []*models.Event {
	events := make([]*models.Event, 0, len(readings))

	for _, reading := range readings {
		if reading.MetricType == "" {
			c.logger.Warn("Reading is missing a metric type",
				zap.Int("scid", reading.SCID),
			)
			continue
		}

		threshold, ok := c.registry.Threshold(reading.MetricType)
		if !ok {
			c.logger.Warn("No threshold configured for metric type",
				zap.Int("scid", reading.SCID),
				zap.String("metric_type", reading.MetricType),
			)
			continue
		}

		// Live sources pre-label status; evaluate only when they did not.
		status := reading.Status
		if !status.Valid() {
			status = Evaluate(reading.Value, threshold)
		}

		timestamp := reading.Timestamp
		if timestamp.IsZero() {
			timestamp = time.Now().UTC()
		}

		event := &models.Event{
			SCID:       reading.SCID,
			MetricType: reading.MetricType,
			Value:      reading.Value,
			Threshold:  threshold,
			Status:     status,
			Timestamp:  timestamp,
		}

		id, err := c.store.InsertEvent(ctx, event)
		if err != nil {
			c.logger.Error("Failed to persist event",
				zap.Int("scid", event.SCID),
				zap.String("metric_type", event.MetricType),
				zap.Error(err),
			)
			continue
		}
		event.ID = id

		if event.Status == models.StatusBreach && c.notifier != nil {
			if err := c.notifier.NotifyBreach(ctx, event); err != nil {
				c.logger.Error("Failed to publish breach notification",
					zap.Int64("event_id", event.ID),
					zap.Error(err),
				)
			}
		}

		c.logger.Info("Recorded event",
			zap.Int64("event_id", event.ID),
			zap.Int("scid", event.SCID),
			zap.String("metric_type", event.MetricType),
			zap.Float64("value", event.Value),
			zap.Float64("threshold", event.Threshold),
			zap.String("status", string(event.Status)),
		)

		events = append(events, event)
	}

	return events
}
