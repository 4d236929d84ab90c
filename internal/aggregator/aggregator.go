package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astra-monitor/internal/cache"
	"astra-monitor/internal/config"
	"astra-monitor/internal/models"
	"astra-monitor/internal/repository"
)

// EventStore is the read-side contract the aggregator needs from the
// event store.
type EventStore interface {
	ListEvents(ctx context.Context, filters repository.EventFilters, sortBy repository.SortField, order repository.SortOrder, limit, offset int) ([]*models.Event, int, error)
	StatusSnapshot(ctx context.Context, window repository.Window) ([]models.LatestStatus, []models.BreachCount, error)
	BreachHistory(ctx context.Context, scid int, metricType string, dateFrom, dateTo time.Time) ([]models.DayCount, error)
}

// Aggregator computes read-only derived views over the event store.
// The registry is authoritative for the shape of every view; the store
// is authoritative only for values.
type Aggregator struct {
	registry *config.Registry
	store    EventStore
	cache    *cache.QueryCache // nil when caching is disabled
	logger   *zap.Logger
}

// New creates an aggregator. cache may be nil.
func New(registry *config.Registry, store EventStore, queryCache *cache.QueryCache, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		store:    store,
		cache:    queryCache,
		logger:   logger,
	}
}

// MetricCell is one payload/metric cell of the status matrix.
type MetricCell struct {
	Status    models.Status `json:"status"`
	Threshold float64       `json:"threshold"`
	Count     int           `json:"count"`
}

// PayloadStatus is one payload row of the status matrix.
type PayloadStatus struct {
	Name    string                 `json:"name"`
	Metrics map[string]*MetricCell `json:"metrics"`
}

// StatusMatrix maps SCID to the per-metric status of that payload.
type StatusMatrix map[int]*PayloadStatus

// StatusQuery restricts the status matrix to a calendar-day window.
// Dates are 2006-01-02 strings; both are optional.
type StatusQuery struct {
	DateFrom string
	DateTo   string
}

// CurrentStatus builds the status matrix for the given window: every
// configured payload/metric pair starts NORMAL with a zero count, then
// the latest store statuses and breach counts are overlaid. Any pair
// with at least one breach in the window is shown as BREACH even when
// its most recent event is NORMAL: breach visibility takes precedence
// over recency. The matrix is never served from the query cache; a
// fresh breach must be visible on the next read.
func (a *Aggregator) CurrentStatus(ctx context.Context, q StatusQuery) (StatusMatrix, error) {
	window, err := parseWindow(q.DateFrom, q.DateTo)
	if err != nil {
		return nil, err
	}

	matrix := StatusMatrix{}
	for _, payload := range a.registry.Payloads {
		row := &PayloadStatus{
			Name:    payload.Name,
			Metrics: map[string]*MetricCell{},
		}
		for _, name := range a.registry.MetricNames() {
			metric, _ := a.registry.Metric(name)
			row.Metrics[name] = &MetricCell{
				Status:    models.StatusNormal,
				Threshold: metric.Threshold,
				Count:     0,
			}
		}
		matrix[payload.SCID] = row
	}

	// Single snapshot so status and count reflect the same point in time.
	statuses, counts, err := a.store.StatusSnapshot(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to read status snapshot: %w", err)
	}

	for _, s := range statuses {
		cell, ok := a.cell(matrix, s.SCID, s.MetricType)
		if !ok {
			a.logger.Warn("Store pair is not in the configured registry, skipping",
				zap.Int("scid", s.SCID),
				zap.String("metric_type", s.MetricType),
			)
			continue
		}
		cell.Status = s.Status
	}

	for _, c := range counts {
		cell, ok := a.cell(matrix, c.SCID, c.MetricType)
		if !ok {
			a.logger.Warn("Store pair is not in the configured registry, skipping",
				zap.Int("scid", c.SCID),
				zap.String("metric_type", c.MetricType),
			)
			continue
		}
		cell.Count = c.Count
		if c.Count > 0 {
			cell.Status = models.StatusBreach
		}
	}

	return matrix, nil
}

// BreachHistory returns the zero-filled daily breach series for one
// payload/metric pair over [dateFrom, dateTo], both 2006-01-02 strings.
func (a *Aggregator) BreachHistory(ctx context.Context, scid int, metricType, dateFrom, dateTo string) ([]models.DayCount, error) {
	from, err := parseDate(dateFrom)
	if err != nil || from == nil {
		return nil, fmt.Errorf("invalid date_from value: %s", dateFrom)
	}
	to, err := parseDate(dateTo)
	if err != nil || to == nil {
		return nil, fmt.Errorf("invalid date_to value: %s", dateTo)
	}
	if to.Before(*from) {
		return nil, fmt.Errorf("date_to cannot be before date_from")
	}

	cacheKey := fmt.Sprintf("history:%d:%s:%s:%s", scid, metricType, dateFrom, dateTo)
	if a.cache != nil {
		history := []models.DayCount{}
		if a.cache.Get(ctx, cacheKey, &history) {
			return history, nil
		}
	}

	history, err := a.store.BreachHistory(ctx, scid, metricType, *from, *to)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Set(ctx, cacheKey, history)
	}

	return history, nil
}

func (a *Aggregator) cell(matrix StatusMatrix, scid int, metricType string) (*MetricCell, bool) {
	row, ok := matrix[scid]
	if !ok {
		return nil, false
	}
	cell, ok := row.Metrics[metricType]
	return cell, ok
}

func parseWindow(dateFrom, dateTo string) (repository.Window, error) {
	from, err := parseDate(dateFrom)
	if err != nil {
		return repository.Window{}, err
	}
	to, err := parseDate(dateTo)
	if err != nil {
		return repository.Window{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return repository.Window{}, fmt.Errorf("date_to cannot be before date_from")
	}
	return repository.Window{DateFrom: from, DateTo: to}, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date value: %s", s)
	}
	return &t, nil
}
