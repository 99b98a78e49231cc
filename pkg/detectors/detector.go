// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

import (
	"context"
	"errors"
	"fmt"
)

// Label classifies a scored sample.
type Label string

const (
	// LabelNormal marks a sample inside the learned operating envelope.
	LabelNormal Label = "NORMAL"
	// LabelAlert marks a sample the detector considers anomalous.
	LabelAlert Label = "ALERT"
)

// Common detector errors.
var (
	// ErrNotTrained is returned when scoring is attempted before Fit or Load.
	ErrNotTrained = errors.New("model not trained")
	// ErrEmptyTrainingSet is returned by Fit on an empty dataset.
	ErrEmptyTrainingSet = errors.New("empty training data")
	// ErrDegenerateTrainingSet is returned by Fit when no feature varies
	// across the training set. Such data admits no splits and the resulting
	// model would score everything identically, so training is refused.
	ErrDegenerateTrainingSet = errors.New("degenerate training data: no feature variance")
)

// SchemaMismatchError reports a sample whose dimensionality disagrees with the
// schema the model was trained on.
type SchemaMismatchError struct {
	Want int
	Got  int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: model trained on %d features, got %d", e.Want, e.Got)
}

// IsSchemaMismatch reports whether err is a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Fit trains the detector on historical data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Predict returns anomaly scores for the given samples.
	// Scores are normalized to [0, 1] where higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// StreamDetector extends Detector with streaming capabilities.
type StreamDetector interface {
	Detector

	// PredictStream processes samples from a channel and outputs scores.
	PredictStream(ctx context.Context, input <-chan []float64, output chan<- Score) error
}

// Score represents an anomaly detection result.
type Score struct {
	// Value is the raw anomaly score in (0, 1]; higher means more anomalous.
	Value float64
	// Decision is the thresholded decision value (threshold - Value):
	// positive for normal samples, negative for anomalies.
	Decision float64
	// Label is the categorical classification derived from Value.
	Label Label
	// IsAnomaly indicates if the score exceeds the threshold.
	IsAnomaly bool
	// Features contains the original input features.
	Features []float64
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64
	// Threshold is the score threshold for classifying anomalies.
	Threshold float64
	// RandomSeed for reproducibility.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.05,
		Threshold:     0.5,
		RandomSeed:    42,
	}
}
