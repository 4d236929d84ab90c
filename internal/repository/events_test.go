package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"astra-monitor/internal/models"
)

func setupMockEventsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *EventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewEventsRepository(db, logger)

	return db, mock, repo
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

// ============================================
// Write path
// ============================================

func TestInsertEvent_Success(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	event := &models.Event{
		SCID:       101,
		MetricType: "thermal",
		Value:      80.0,
		Threshold:  75.0,
		Status:     models.StatusBreach,
		Timestamp:  now,
	}

	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs(101, "thermal", 80.0, 75.0, "BREACH", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.InsertEvent(ctx, event)

	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvent_Validation(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := repo.InsertEvent(ctx, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event is required")

	_, err = repo.InsertEvent(ctx, &models.Event{
		SCID:      101,
		Value:     80.0,
		Status:    models.StatusBreach,
		Timestamp: time.Now(),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "metric_type is required")

	_, err = repo.InsertEvent(ctx, &models.Event{
		SCID:       101,
		MetricType: "thermal",
		Value:      80.0,
		Status:     "WEIRD",
		Timestamp:  time.Now(),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvent_StorageFailure(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO events`).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.InsertEvent(ctx, &models.Event{
		SCID:       101,
		MetricType: "thermal",
		Value:      80.0,
		Threshold:  75.0,
		Status:     models.StatusBreach,
		Timestamp:  time.Now(),
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert event")

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Filtered listing
// ============================================

func TestListEvents_FiltersAndPagination(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	scid := 101
	status := models.StatusBreach
	from := day(t, "2024-01-01")
	to := day(t, "2024-01-31")

	filters := EventFilters{
		SCID:     &scid,
		Status:   &status,
		DateFrom: &from,
		DateTo:   &to,
	}

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(101, "BREACH", from, to.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "scid", "metric_type", "value", "threshold", "status", "timestamp"}).
		AddRow(int64(9), 101, "thermal", 80.0, 75.0, "BREACH", ts)

	mock.ExpectQuery(`SELECT id, scid, metric_type`).
		WithArgs(101, "BREACH", from, to.AddDate(0, 0, 1), 25, 25).
		WillReturnRows(rows)

	events, total, err := repo.ListEvents(ctx, filters, SortByTimestamp, SortDesc, 25, 25)

	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.Len(t, events, 1)
	assert.Equal(t, int64(9), events[0].ID)
	assert.Equal(t, "thermal", events[0].MetricType)
	assert.Equal(t, models.StatusBreach, events[0].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEvents_EmptyPageBeyondEnd(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))

	mock.ExpectQuery(`SELECT id, scid, metric_type`).
		WithArgs(25, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "scid", "metric_type", "value", "threshold", "status", "timestamp"}))

	events, total, err := repo.ListEvents(ctx, EventFilters{}, SortByTimestamp, SortDesc, 25, 100)

	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Empty(t, events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseSortField(t *testing.T) {
	field, err := ParseSortField("")
	require.NoError(t, err)
	assert.Equal(t, SortByTimestamp, field)

	field, err = ParseSortField("value")
	require.NoError(t, err)
	assert.Equal(t, SortByValue, field)

	_, err = ParseSortField("timestamp; DROP TABLE events")
	assert.Error(t, err)

	_, err = ParseSortField("unknown_column")
	assert.Error(t, err)
}

func TestParseSortOrder(t *testing.T) {
	order, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortDesc, order)

	order, err = ParseSortOrder("ASC")
	require.NoError(t, err)
	assert.Equal(t, SortAsc, order)

	_, err = ParseSortOrder("sideways")
	assert.Error(t, err)
}

// ============================================
// Aggregate queries
// ============================================

func TestBreachCounts_Windowed(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	from := day(t, "2024-01-01")

	rows := sqlmock.NewRows([]string{"scid", "metric_type", "count"}).
		AddRow(101, "thermal", 3).
		AddRow(102, "voltage", 1)

	mock.ExpectQuery(`SELECT scid, metric_type, COUNT`).
		WithArgs(from).
		WillReturnRows(rows)

	counts, err := repo.BreachCounts(ctx, Window{DateFrom: &from})

	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.BreachCount{SCID: 101, MetricType: "thermal", Count: 3}, counts[0])
	assert.Equal(t, models.BreachCount{SCID: 102, MetricType: "voltage", Count: 1}, counts[1])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestStatuses(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"scid", "metric_type", "status"}).
		AddRow(101, "thermal", "BREACH").
		AddRow(101, "voltage", "NORMAL")

	mock.ExpectQuery(`SELECT DISTINCT ON`).
		WillReturnRows(rows)

	statuses, err := repo.LatestStatuses(ctx, Window{})

	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, models.StatusBreach, statuses[0].Status)
	assert.Equal(t, models.StatusNormal, statuses[1].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusSnapshot_SingleTransaction(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT DISTINCT ON`).
		WillReturnRows(sqlmock.NewRows([]string{"scid", "metric_type", "status"}).
			AddRow(101, "thermal", "NORMAL"))
	mock.ExpectQuery(`SELECT scid, metric_type, COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"scid", "metric_type", "count"}).
			AddRow(101, "thermal", 2))
	mock.ExpectCommit()

	statuses, counts, err := repo.StatusSnapshot(ctx, Window{})

	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBreachHistory_ZeroFilled(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	from := day(t, "2024-01-01")
	to := day(t, "2024-01-03")

	rows := sqlmock.NewRows([]string{"day", "count"}).
		AddRow(day(t, "2024-01-02"), 2)

	mock.ExpectQuery(`SELECT DATE`).
		WithArgs(101, "thermal", from, to.AddDate(0, 0, 1)).
		WillReturnRows(rows)

	history, err := repo.BreachHistory(ctx, 101, "thermal", from, to)

	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.DayCount{Day: "2024-01-01", Count: 0}, history[0])
	assert.Equal(t, models.DayCount{Day: "2024-01-02", Count: 2}, history[1])
	assert.Equal(t, models.DayCount{Day: "2024-01-03", Count: 0}, history[2])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBreachHistory_NoBreaches(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	from := day(t, "2024-01-01")
	to := day(t, "2024-01-03")

	mock.ExpectQuery(`SELECT DATE`).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}))

	history, err := repo.BreachHistory(ctx, 102, "voltage", from, to)

	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, dc := range history {
		assert.Equal(t, 0, dc.Count)
		assert.Equal(t, from.AddDate(0, 0, i).Format("2006-01-02"), dc.Day)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBreachHistory_BucketsDaysInUTC(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	from := day(t, "2024-01-01")
	to := day(t, "2024-01-01")

	// A breach near midnight must group to the same UTC day the
	// zero-fill uses, regardless of the server session time zone.
	mock.ExpectQuery(`DATE\(timestamp AT TIME ZONE 'UTC'\)`).
		WithArgs(101, "thermal", from, to.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).
			AddRow(day(t, "2024-01-01"), 1))

	history, err := repo.BreachHistory(ctx, 101, "thermal", from, to)

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.DayCount{Day: "2024-01-01", Count: 1}, history[0])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBreachHistory_Validation(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := repo.BreachHistory(ctx, 101, "", day(t, "2024-01-01"), day(t, "2024-01-03"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "metric_type is required")

	_, err = repo.BreachHistory(ctx, 101, "thermal", day(t, "2024-01-03"), day(t, "2024-01-01"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "date_to cannot be before date_from")

	require.NoError(t, mock.ExpectationsWereMet())
}
