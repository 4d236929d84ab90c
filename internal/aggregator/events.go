package aggregator

import (
	"context"
	"fmt"
	"strconv"

	"astra-monitor/internal/models"
	"astra-monitor/internal/repository"
)

// EventQuery is the raw, caller-supplied query for the event listing.
// All fields are optional strings; invalid input surfaces to the caller
// as an error rather than being silently ignored.
type EventQuery struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string

	SCID       string
	MetricType string
	Status     string
	DateFrom   string
	DateTo     string
}

// EventPage is one page of the filtered event listing.
type EventPage struct {
	Events     []*models.Event `json:"events"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// Events returns a validated, sorted, paginated view of the event log.
// TotalPages is always at least 1; a page past the end returns an empty
// event list without error.
func (a *Aggregator) Events(ctx context.Context, q EventQuery) (*EventPage, error) {
	filters, err := normalizeFilters(q)
	if err != nil {
		return nil, err
	}

	sortBy, err := repository.ParseSortField(q.SortBy)
	if err != nil {
		return nil, err
	}
	order, err := repository.ParseSortOrder(q.SortOrder)
	if err != nil {
		return nil, err
	}

	page := q.Page
	if page <= 0 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}

	cacheKey := fmt.Sprintf("events:%d:%d:%s:%s:%s:%s:%s:%s:%s",
		page, pageSize, sortBy, order, q.SCID, q.MetricType, q.Status, q.DateFrom, q.DateTo)
	if a.cache != nil {
		result := EventPage{}
		if a.cache.Get(ctx, cacheKey, &result) {
			return &result, nil
		}
	}

	events, total, err := a.store.ListEvents(ctx, filters, sortBy, order, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	result := &EventPage{
		Events:     events,
		TotalCount: total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
	}

	if a.cache != nil {
		a.cache.Set(ctx, cacheKey, result)
	}

	return result, nil
}

// normalizeFilters validates the raw filter strings.
func normalizeFilters(q EventQuery) (repository.EventFilters, error) {
	filters := repository.EventFilters{}

	if q.SCID != "" {
		scid, err := strconv.Atoi(q.SCID)
		if err != nil {
			return filters, fmt.Errorf("invalid scid value: %s", q.SCID)
		}
		filters.SCID = &scid
	}

	if q.MetricType != "" {
		metricType := q.MetricType
		filters.MetricType = &metricType
	}

	if q.Status != "" {
		status := models.Status(q.Status)
		if !status.Valid() {
			return filters, fmt.Errorf("invalid status value: %s", q.Status)
		}
		filters.Status = &status
	}

	from, err := parseDate(q.DateFrom)
	if err != nil {
		return filters, fmt.Errorf("invalid date_from value: %s", q.DateFrom)
	}
	filters.DateFrom = from

	to, err := parseDate(q.DateTo)
	if err != nil {
		return filters, fmt.Errorf("invalid date_to value: %s", q.DateTo)
	}
	filters.DateTo = to

	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateTo.Before(*filters.DateFrom) {
		return filters, fmt.Errorf("date_to cannot be before date_from")
	}

	return filters, nil
}
