package source

import (
	"context"

	"go.uber.org/zap"

	"astra-monitor/internal/models"
)

// FallbackSource tries a primary (live) source and falls back to a
// secondary (synthetic) source when the primary errors or produces
// nothing. A primary failure never propagates past this boundary; only
// a failure of the fallback itself may surface.
type FallbackSource struct {
	primary  ReadingSource
	fallback ReadingSource
	logger   *zap.Logger
}

// NewFallbackSource wraps primary with fallback.
func NewFallbackSource(primary, fallback ReadingSource, logger *zap.Logger) *FallbackSource {
	return &FallbackSource{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// MonitorAll samples from the primary source, falling back on error or
// an empty result.
func (f *FallbackSource) MonitorAll(ctx context.Context) ([]models.Reading, error) {
	readings, err := f.primary.MonitorAll(ctx)
	if err != nil {
		f.logger.Warn("Primary reading source failed, using synthetic fallback",
			zap.Error(err),
		)
		return f.fallback.MonitorAll(ctx)
	}
	if len(readings) == 0 {
		f.logger.Debug("Primary reading source returned nothing, using synthetic fallback")
		return f.fallback.MonitorAll(ctx)
	}
	return readings, nil
}

// Monitor samples one metric from the primary source, falling back on
// error or an empty result.
func (f *FallbackSource) Monitor(ctx context.Context, metricType string, scid *int) ([]models.Reading, error) {
	readings, err := f.primary.Monitor(ctx, metricType, scid)
	if err != nil {
		f.logger.Warn("Primary reading source failed, using synthetic fallback",
			zap.String("metric_type", metricType),
			zap.Error(err),
		)
		return f.fallback.Monitor(ctx, metricType, scid)
	}
	if len(readings) == 0 {
		f.logger.Debug("Primary reading source returned nothing, using synthetic fallback",
			zap.String("metric_type", metricType),
		)
		return f.fallback.Monitor(ctx, metricType, scid)
	}
	return readings, nil
}
