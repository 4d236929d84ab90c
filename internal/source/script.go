package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"astra-monitor/internal/config"
	"astra-monitor/internal/models"
)

// ScriptSource runs one external monitor executable per metric type and
// parses its JSON output. Scripts are named sample_<metric>_monitor and
// live in the configured directory. Every invocation is bounded by the
// configured timeout, since an instrument script may hang.
type ScriptSource struct {
	registry *config.Registry
	dir      string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScriptSource creates a script-backed reading source.
func NewScriptSource(registry *config.Registry, dir string, timeout time.Duration, logger *zap.Logger) *ScriptSource {
	return &ScriptSource{
		registry: registry,
		dir:      dir,
		timeout:  timeout,
		logger:   logger,
	}
}

// scriptResult is the wire document a monitor script prints on stdout.
type scriptResult struct {
	Results []scriptReading `json:"results"`
}

type scriptReading struct {
	SCID       int     `json:"scid"`
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
	Threshold  float64 `json:"threshold"`
	Status     string  `json:"status"`
	Timestamp  string  `json:"timestamp"`
}

// MonitorAll runs the script for every configured metric and combines
// the results. A missing or failing script for one metric does not stop
// the others; if no script produced anything, an error is returned so
// the fallback source takes over.
func (s *ScriptSource) MonitorAll(ctx context.Context) ([]models.Reading, error) {
	readings := []models.Reading{}
	ran := 0

	for _, metric := range s.registry.MetricNames() {
		path, ok := s.scriptPath(metric)
		if !ok {
			continue
		}

		metricReadings, err := s.run(ctx, path, metric, nil)
		if err != nil {
			s.logger.Warn("Monitor script failed",
				zap.String("metric_type", metric),
				zap.String("script", path),
				zap.Error(err),
			)
			continue
		}

		ran++
		readings = append(readings, metricReadings...)
	}

	if ran == 0 {
		return nil, fmt.Errorf("no monitor scripts available in %s", s.dir)
	}

	return readings, nil
}

// Monitor runs the script for one metric type.
func (s *ScriptSource) Monitor(ctx context.Context, metricType string, scid *int) ([]models.Reading, error) {
	path, ok := s.scriptPath(metricType)
	if !ok {
		return nil, fmt.Errorf("no monitor script for metric type %s", metricType)
	}
	return s.run(ctx, path, metricType, scid)
}

func (s *ScriptSource) scriptPath(metricType string) (string, bool) {
	path := filepath.Join(s.dir, fmt.Sprintf("sample_%s_monitor", metricType))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

func (s *ScriptSource) run(ctx context.Context, path, metricType string, scid *int) ([]models.Reading, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{}
	if scid != nil {
		args = append(args, strconv.Itoa(*scid))
	}

	out, err := exec.CommandContext(runCtx, path, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("monitor script %s failed: %w", path, err)
	}

	return s.parse(out, metricType)
}

// parse extracts the JSON document from script output, tolerating any
// banner text the instrument prints before it.
func (s *ScriptSource) parse(out []byte, metricType string) ([]models.Reading, error) {
	raw := string(out)
	start := strings.Index(raw, "{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON document in script output for %s", metricType)
	}

	var result scriptResult
	if err := json.Unmarshal([]byte(raw[start:]), &result); err != nil {
		return nil, fmt.Errorf("failed to parse script output for %s: %w", metricType, err)
	}

	readings := make([]models.Reading, 0, len(result.Results))
	for _, r := range result.Results {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}

		readings = append(readings, models.Reading{
			SCID:       r.SCID,
			MetricType: r.MetricType,
			Value:      r.Value,
			Threshold:  r.Threshold,
			Status:     models.Status(r.Status),
			Timestamp:  ts,
		})
	}

	return readings, nil
}
