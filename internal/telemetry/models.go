package telemetry

import (
	"time"
)

// StationStatus is the operational state reported for a station.
type StationStatus string

const (
	StationStatusUnknown StationStatus = "unknown"
	StationStatusOnline  StationStatus = "online"
	StationStatusOffline StationStatus = "offline"
	StationStatusFault   StationStatus = "fault"
)

// Station is a weather station. Identity is ID.
type Station struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Location          string        `json:"location"`
	Latitude          float64       `json:"latitude"`
	Longitude         float64       `json:"longitude"`
	Status            StationStatus `json:"status"`
	LastCommunication time.Time     `json:"lastCommunication"`
}

// WidgetValue is a single live reading shown on the dashboard.
type WidgetValue struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

// WidgetSnapshot holds the latest value of every parameter for a station.
type WidgetSnapshot struct {
	StationID string        `json:"stationId"`
	Timestamp time.Time     `json:"timestamp"`
	Values    []WidgetValue `json:"values"`
}

// SeriesPoint is one row of a historical table: all parameters at one instant.
type SeriesPoint struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// HistoricalSeries is a station's readings over [From, To].
type HistoricalSeries struct {
	StationID string        `json:"stationId"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	Points    []SeriesPoint `json:"points"`
}

// Sample is one value of one chart parameter.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ParameterSeries is the chart line of a single parameter.
type ParameterSeries struct {
	Parameter string   `json:"parameter"`
	Unit      string   `json:"unit"`
	Samples   []Sample `json:"samples"`
}

// ChartSeries is a station's multi-parameter chart data over [From, To].
type ChartSeries struct {
	StationID string            `json:"stationId"`
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	Series    []ParameterSeries `json:"series"`
}
