package repository

import (
	"fmt"
	"time"

	"astra-monitor/internal/models"
)

// EventFilters is a conjunction of optional filters over the events table.
// DateFrom/DateTo are calendar days: the window covers DateFrom 00:00:00
// through the end of DateTo (implemented as a half-open range).
type EventFilters struct {
	SCID       *int
	MetricType *string
	Status     *models.Status
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Window restricts aggregate queries to a calendar-day range.
// Both bounds are optional and inclusive.
type Window struct {
	DateFrom *time.Time
	DateTo   *time.Time
}

// Window returns the date portion of the filters.
func (f EventFilters) Window() Window {
	return Window{DateFrom: f.DateFrom, DateTo: f.DateTo}
}

// SortField is a sortable column of the events table. Sort input is
// validated against this closed set before any query is built.
type SortField string

const (
	SortByID         SortField = "id"
	SortBySCID       SortField = "scid"
	SortByMetricType SortField = "metric_type"
	SortByValue      SortField = "value"
	SortByThreshold  SortField = "threshold"
	SortByStatus     SortField = "status"
	SortByTimestamp  SortField = "timestamp"
)

// ParseSortField validates a raw sort column name. Empty input selects
// the default (timestamp).
func ParseSortField(s string) (SortField, error) {
	switch SortField(s) {
	case "":
		return SortByTimestamp, nil
	case SortByID, SortBySCID, SortByMetricType, SortByValue, SortByThreshold, SortByStatus, SortByTimestamp:
		return SortField(s), nil
	}
	return "", fmt.Errorf("invalid sort field: %s", s)
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ParseSortOrder validates a raw sort order. Empty input selects the
// default (DESC).
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "":
		return SortDesc, nil
	case SortAsc, SortDesc:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("invalid sort order: %s", s)
}

// buildWhere appends filter conditions as positional parameters.
func (f EventFilters) buildWhere(args *[]interface{}, argN *int) []string {
	where := []string{}

	if f.SCID != nil {
		where = append(where, fmt.Sprintf("scid = $%d", *argN))
		*args = append(*args, *f.SCID)
		*argN++
	}
	if f.MetricType != nil {
		where = append(where, fmt.Sprintf("metric_type = $%d", *argN))
		*args = append(*args, *f.MetricType)
		*argN++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, string(*f.Status))
		*argN++
	}

	return append(where, f.Window().buildWhere(args, argN)...)
}

// buildWhere appends the date-window conditions as positional parameters.
// The inclusive day range [DateFrom, DateTo] becomes
// timestamp >= DateFrom 00:00 AND timestamp < DateTo+1d 00:00.
func (w Window) buildWhere(args *[]interface{}, argN *int) []string {
	where := []string{}

	if w.DateFrom != nil {
		where = append(where, fmt.Sprintf("timestamp >= $%d", *argN))
		*args = append(*args, startOfDay(*w.DateFrom))
		*argN++
	}
	if w.DateTo != nil {
		where = append(where, fmt.Sprintf("timestamp < $%d", *argN))
		*args = append(*args, startOfDay(*w.DateTo).AddDate(0, 0, 1))
		*argN++
	}

	return where
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
