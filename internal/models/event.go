package models

import "time"

// Status of an evaluated reading.
type Status string

const (
	StatusNormal Status = "NORMAL"
	StatusBreach Status = "BREACH"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusNormal || s == StatusBreach
}

// Payload is a monitored unit (e.g. a spacecraft), identified by SCID.
// The payload registry is configuration-derived and read-only at runtime.
type Payload struct {
	SCID int    `yaml:"scid" json:"scid"`
	Name string `yaml:"name" json:"name"`
}

// MetricConfig is the configured threshold for one metric type, plus the
// baseline/variation used by the synthetic reading source. Baseline and
// Variation default to 0.8x / 0.4x the threshold when omitted.
type MetricConfig struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Baseline  float64 `yaml:"baseline,omitempty" json:"baseline,omitempty"`
	Variation float64 `yaml:"variation,omitempty" json:"variation,omitempty"`
}

// BaselineOrDefault returns the configured baseline, or 80% of the
// threshold when none is set.
func (m MetricConfig) BaselineOrDefault() float64 {
	if m.Baseline != 0 {
		return m.Baseline
	}
	return m.Threshold * 0.8
}

// VariationOrDefault returns the configured variation, or 40% of the
// threshold when none is set.
func (m MetricConfig) VariationOrDefault() float64 {
	if m.Variation != 0 {
		return m.Variation
	}
	return m.Threshold * 0.4
}

// Reading is one ephemeral sampled value for a payload/metric pair,
// produced by a reading source. Sources that know the threshold at
// sampling time pre-label Status; the checker evaluates it otherwise.
type Reading struct {
	SCID       int       `json:"scid"`
	MetricType string    `json:"metric_type"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event is the persisted, immutable record of one evaluated reading.
// Threshold is captured at evaluation time so historical events remain
// interpretable after configuration changes. Events are append-only:
// the core never updates or deletes them.
type Event struct {
	ID         int64     `json:"id"`
	SCID       int       `json:"scid"`
	MetricType string    `json:"metric_type"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
	Status     Status    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// BreachCount is the number of BREACH events for one payload/metric pair
// within a query window.
type BreachCount struct {
	SCID       int    `json:"scid"`
	MetricType string `json:"metric_type"`
	Count      int    `json:"count"`
}

// LatestStatus is the status of the most recent event for one
// payload/metric pair within a query window.
type LatestStatus struct {
	SCID       int    `json:"scid"`
	MetricType string `json:"metric_type"`
	Status     Status `json:"status"`
}

// DayCount is one point of a zero-filled daily breach series.
// Day is formatted as 2006-01-02.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}
