package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"astra-monitor/internal/models"
)

// EventsRepository is the append-only event store. Events are inserted
// by the monitoring write path and never updated or deleted.
type EventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventsRepository creates the events repository.
func NewEventsRepository(db *sql.DB, logger *zap.Logger) *EventsRepository {
	return &EventsRepository{
		db:     db,
		logger: logger,
	}
}

// querier is satisfied by *sql.DB and *sql.Tx, so aggregate queries can
// run either directly or inside a snapshot transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const eventColumns = "id, scid, metric_type, value, threshold, status, timestamp"

// EnsureSchema creates the events table and its indexes if missing.
// Retention is unbounded: the core never deletes rows.
func (r *EventsRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			scid INTEGER NOT NULL,
			metric_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_scid ON events (scid)`,
		`CREATE INDEX IF NOT EXISTS idx_events_metric_type ON events (metric_type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_status ON events (status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_scid_metric_ts ON events (scid, metric_type, timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure events schema: %w", err)
		}
	}

	return nil
}

// ============================================
// Write path
// ============================================

// InsertEvent appends one event and returns the store-assigned id.
func (r *EventsRepository) InsertEvent(ctx context.Context, event *models.Event) (int64, error) {
	if event == nil {
		return 0, fmt.Errorf("event is required")
	}
	if event.MetricType == "" {
		return 0, fmt.Errorf("metric_type is required")
	}
	if !event.Status.Valid() {
		return 0, fmt.Errorf("invalid status: %s", event.Status)
	}
	if event.Timestamp.IsZero() {
		return 0, fmt.Errorf("timestamp is required")
	}

	query := `
		INSERT INTO events (scid, metric_type, value, threshold, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		event.SCID,
		event.MetricType,
		event.Value,
		event.Threshold,
		string(event.Status),
		event.Timestamp,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	return id, nil
}

// ============================================
// Filtered listing
// ============================================

// ListEvents returns one page of events plus the total count of the
// filtered set before pagination. sortBy and order must come from the
// Parse* validators; limit defaults to 25 when non-positive.
func (r *EventsRepository) ListEvents(ctx context.Context, filters EventFilters, sortBy SortField, order SortOrder, limit, offset int) ([]*models.Event, int, error) {
	if sortBy == "" {
		sortBy = SortByTimestamp
	}
	if order == "" {
		order = SortDesc
	}
	if limit <= 0 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	args := []interface{}{}
	argN := 1
	where := filters.buildWhere(&args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	queryCount := fmt.Sprintf(`SELECT COUNT(*) FROM events %s`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY %s %s, id %s
		LIMIT $%d OFFSET $%d
	`, eventColumns, whereClause, sortBy, order, order, argN, argN+1)

	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(
			&event.ID,
			&event.SCID,
			&event.MetricType,
			&event.Value,
			&event.Threshold,
			&event.Status,
			&event.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, total, nil
}

// ============================================
// Aggregate queries
// ============================================

// BreachCounts returns the BREACH event count per (scid, metric_type)
// pair within the optional date window.
func (r *EventsRepository) BreachCounts(ctx context.Context, window Window) ([]models.BreachCount, error) {
	return r.breachCounts(ctx, r.db, window)
}

// LatestStatuses returns, for each (scid, metric_type) pair with at
// least one event in the window, the status of the most recent event.
// Timestamp ties break to the highest id.
func (r *EventsRepository) LatestStatuses(ctx context.Context, window Window) ([]models.LatestStatus, error) {
	return r.latestStatuses(ctx, r.db, window)
}

// StatusSnapshot returns latest statuses and breach counts from a single
// read-only transaction, so both views reflect the same point in time
// even under concurrent writes. Repeatable read is required: at read
// committed each statement takes its own snapshot, so a write landing
// between the two queries would be visible to only one of them.
func (r *EventsRepository) StatusSnapshot(ctx context.Context, window Window) ([]models.LatestStatus, []models.BreachCount, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	statuses, err := r.latestStatuses(ctx, tx, window)
	if err != nil {
		return nil, nil, err
	}

	counts, err := r.breachCounts(ctx, tx, window)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	return statuses, counts, nil
}

func (r *EventsRepository) breachCounts(ctx context.Context, q querier, window Window) ([]models.BreachCount, error) {
	args := []interface{}{}
	argN := 1
	where := append([]string{"status = 'BREACH'"}, window.buildWhere(&args, &argN)...)

	query := fmt.Sprintf(`
		SELECT scid, metric_type, COUNT(*) AS count
		FROM events
		WHERE %s
		GROUP BY scid, metric_type
		ORDER BY scid, metric_type
	`, strings.Join(where, " AND "))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query breach counts: %w", err)
	}
	defer rows.Close()

	counts := []models.BreachCount{}
	for rows.Next() {
		var c models.BreachCount
		if err := rows.Scan(&c.SCID, &c.MetricType, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan breach count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breach counts: %w", err)
	}

	return counts, nil
}

func (r *EventsRepository) latestStatuses(ctx context.Context, q querier, window Window) ([]models.LatestStatus, error) {
	args := []interface{}{}
	argN := 1
	where := window.buildWhere(&args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (scid, metric_type) scid, metric_type, status
		FROM events
		%s
		ORDER BY scid, metric_type, timestamp DESC, id DESC
	`, whereClause)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest statuses: %w", err)
	}
	defer rows.Close()

	statuses := []models.LatestStatus{}
	for rows.Next() {
		var s models.LatestStatus
		if err := rows.Scan(&s.SCID, &s.MetricType, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan latest status: %w", err)
		}
		statuses = append(statuses, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate latest statuses: %w", err)
	}

	return statuses, nil
}

// BreachHistory returns the daily BREACH count for one payload/metric
// pair over the inclusive calendar range [dateFrom, dateTo], zero-filled:
// every day in the range appears exactly once, in ascending order.
func (r *EventsRepository) BreachHistory(ctx context.Context, scid int, metricType string, dateFrom, dateTo time.Time) ([]models.DayCount, error) {
	if metricType == "" {
		return nil, fmt.Errorf("metric_type is required")
	}
	if dateFrom.IsZero() || dateTo.IsZero() {
		return nil, fmt.Errorf("date range is required")
	}

	from := startOfDay(dateFrom)
	to := startOfDay(dateTo)
	if to.Before(from) {
		return nil, fmt.Errorf("date_to cannot be before date_from")
	}

	// Bucket in UTC explicitly: DATE() on a timestamptz uses the server
	// session time zone, which must agree with the zero-fill day keys.
	query := `
		SELECT DATE(timestamp AT TIME ZONE 'UTC') AS day, COUNT(*) AS count
		FROM events
		WHERE scid = $1
		  AND metric_type = $2
		  AND status = 'BREACH'
		  AND timestamp >= $3
		  AND timestamp < $4
		GROUP BY DATE(timestamp AT TIME ZONE 'UTC')
		ORDER BY day
	`

	rows, err := r.db.QueryContext(ctx, query, scid, metricType, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to query breach history: %w", err)
	}
	defer rows.Close()

	dayCounts := map[string]int{}
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan breach history row: %w", err)
		}
		dayCounts[day.Format("2006-01-02")] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breach history: %w", err)
	}

	// Zero-fill: one entry per calendar day, breaches or not.
	history := []models.DayCount{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		history = append(history, models.DayCount{
			Day:   key,
			Count: dayCounts[key],
		})
	}

	return history, nil
}
