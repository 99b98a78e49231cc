// Package io provides input/output utilities for data ingestion.
package io

import (
	"context"

	"machinesentry/pkg/sensor"
)

// Reader is the interface for reading sensor readings from various sources.
type Reader interface {
	// Read returns the complete dataset.
	Read() ([]sensor.Reading, error)

	// Stream returns a channel of readings for real-time processing.
	Stream(ctx context.Context) (<-chan sensor.Reading, error)

	// Close releases resources.
	Close() error
}

// Result represents a scored reading, suitable for JSON output.
type Result struct {
	Timestamp int64     `json:"timestamp"`
	Score     float64   `json:"score"`
	Status    string    `json:"status"`
	IsAnomaly bool      `json:"is_anomaly"`
	Features  []float64 `json:"features,omitempty"`
}

// Writer is the interface for writing detection results.
type Writer interface {
	// Write outputs a single result.
	Write(result Result) error

	// WriteAll outputs multiple results.
	WriteAll(results []Result) error

	// Close releases resources.
	Close() error
}
