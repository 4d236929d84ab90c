package source

import (
	"context"

	"astra-monitor/internal/models"
)

// ReadingSource produces metric readings for payloads on demand.
// Implementations must have bounded execution: a live source applies a
// timeout to any external process or network call it makes.
type ReadingSource interface {
	// MonitorAll samples every configured metric for every payload.
	MonitorAll(ctx context.Context) ([]models.Reading, error)
	// Monitor samples one metric type, optionally for a single payload.
	Monitor(ctx context.Context, metricType string, scid *int) ([]models.Reading, error)
}
