package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"astra-monitor/internal/models"
)

// HTTPSource samples readings from an instrument gateway over HTTP.
// The gateway exposes GET /readings (all metrics) and
// GET /readings/{metric}?scid=N, both returning {"results": [...]}.
type HTTPSource struct {
	client *resty.Client
	logger *zap.Logger
}

// readingsResponse is the gateway response envelope.
type readingsResponse struct {
	Results []models.Reading `json:"results"`
}

// NewHTTPSource creates an HTTP-backed reading source.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPSource{
		client: client,
		logger: logger,
	}
}

// MonitorAll fetches readings for every metric and payload.
func (s *HTTPSource) MonitorAll(ctx context.Context) ([]models.Reading, error) {
	return s.get(ctx, "/readings", nil)
}

// Monitor fetches readings for one metric, optionally for one payload.
func (s *HTTPSource) Monitor(ctx context.Context, metricType string, scid *int) ([]models.Reading, error) {
	return s.get(ctx, "/readings/"+metricType, scid)
}

func (s *HTTPSource) get(ctx context.Context, path string, scid *int) ([]models.Reading, error) {
	var result readingsResponse

	req := s.client.R().
		SetContext(ctx).
		SetResult(&result)

	if scid != nil {
		req.SetQueryParam("scid", strconv.Itoa(*scid))
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("instrument gateway request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("instrument gateway returned status %d for %s", resp.StatusCode(), path)
	}

	s.logger.Debug("Fetched readings from instrument gateway",
		zap.String("path", path),
		zap.Int("reading_count", len(result.Results)),
	)

	return result.Results, nil
}
