// Package features converts raw sensor readings into the fixed-order numeric
// vectors the anomaly model is trained on and scored with.
package features

import (
	"math/rand"

	"machinesentry/pkg/sensor"
)

// Dims is the fixed width of every feature vector.
const Dims = 3

// Vector field order. The model is trained on vectors in exactly this order
// and the order never changes after training.
const (
	IdxSoundVolume = iota // rotational speed, used as a sound-volume proxy
	IdxTemperatureC
	IdxHumidity
)

const (
	kelvinOffset = 273.15

	// Synthetic humidity: an unmeasured variable approximated from
	// temperature and speed around a plant baseline.
	baseHumidity = 45.0
	tempWeight   = -0.5
	rpmWeight    = 0.005
)

// Stats holds the training-set statistics the humidity derivation is anchored
// to. They are fitted once by the trainer and persisted with the model so
// serving uses the same anchor as training.
type Stats struct {
	TempMeanC float64
	RPMMean   float64
}

// Engineer derives feature vectors from raw readings. The jitter source is
// injected so any caller that needs determinism can fix the seed; the
// transform is otherwise pure.
type Engineer struct {
	stats  Stats
	jitter float64 // humidity jitter amplitude, +/- uniform
	rng    *rand.Rand
}

// Option configures an Engineer.
type Option func(*Engineer)

// WithStats anchors humidity derivation to previously fitted statistics.
func WithStats(s Stats) Option {
	return func(e *Engineer) {
		e.stats = s
	}
}

// WithJitter sets the humidity jitter amplitude.
func WithJitter(amplitude float64) Option {
	return func(e *Engineer) {
		e.jitter = amplitude
	}
}

// WithSeed seeds the jitter source.
func WithSeed(seed int64) Option {
	return func(e *Engineer) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates an Engineer. Defaults: the original training-set anchors
// (26.85 C, 1538 rpm), jitter +/-0.5 as used at scoring time, seed 42.
func New(opts ...Option) *Engineer {
	e := &Engineer{
		stats:  Stats{TempMeanC: 26.85, RPMMean: 1538.0},
		jitter: 0.5,
		rng:    rand.New(rand.NewSource(42)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FitStats computes humidity anchors from a historical batch and installs
// them on the Engineer. Returns the fitted stats for persistence.
func (e *Engineer) FitStats(readings []sensor.Reading) Stats {
	if len(readings) == 0 {
		return e.stats
	}
	var tempSum, rpmSum float64
	for _, r := range readings {
		tempSum += r.AirTempK - kelvinOffset
		rpmSum += r.RotationalSpeedRPM
	}
	n := float64(len(readings))
	e.stats = Stats{TempMeanC: tempSum / n, RPMMean: rpmSum / n}
	return e.stats
}

// Stats returns the engineer's current anchors.
func (e *Engineer) Stats() Stats {
	return e.stats
}

// Vector derives the feature vector for a single reading. Total on any
// numeric input: it never fails.
func (e *Engineer) Vector(r sensor.Reading) []float64 {
	tempC := r.AirTempK - kelvinOffset

	humidity := baseHumidity +
		(tempC-e.stats.TempMeanC)*tempWeight +
		(r.RotationalSpeedRPM-e.stats.RPMMean)*rpmWeight
	humidity += e.rng.Float64()*2*e.jitter - e.jitter
	humidity = clip(humidity, 0, 100)

	v := make([]float64, Dims)
	v[IdxSoundVolume] = r.RotationalSpeedRPM
	v[IdxTemperatureC] = tempC
	v[IdxHumidity] = humidity
	return v
}

// Vectors derives feature vectors for a batch, preserving order.
func (e *Engineer) Vectors(readings []sensor.Reading) [][]float64 {
	out := make([][]float64, len(readings))
	for i, r := range readings {
		out[i] = e.Vector(r)
	}
	return out
}

// FeatureNames returns the names of derived features in vector order.
func (e *Engineer) FeatureNames() []string {
	return []string{"sound_volume_proxy", "temperature_celsius", "humidity"}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
