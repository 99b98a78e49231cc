// Package server hosts the real-time scoring service.
package server

import (
	"sync"

	"machinesentry/internal/artifact"
	"machinesentry/pkg/detectors"
	"machinesentry/pkg/detectors/iforest"
	"machinesentry/pkg/features"
	"machinesentry/pkg/sensor"
)

// Scorer is the READY scoring state: a loaded, immutable forest plus the
// feature engineer anchored to the artifact's training statistics. It is
// constructed exactly once at startup; a process that fails to construct it
// never accepts requests.
type Scorer struct {
	forest *iforest.IsolationForest
	eng    *features.Engineer

	// The engineer's jitter source is stateful; scoring itself is lock-free
	// on the forest, only vector derivation is serialized.
	engMu sync.Mutex
}

// NewScorer loads the artifact at path and builds the scoring state.
func NewScorer(path string) (*Scorer, error) {
	art, err := artifact.Load(path)
	if err != nil {
		return nil, err
	}
	forest, err := art.Forest()
	if err != nil {
		return nil, err
	}
	eng := features.New(features.WithStats(art.Stats))
	return &Scorer{forest: forest, eng: eng}, nil
}

// NewScorerFromParts builds a Scorer directly; used by tests and embedded
// callers that already hold a trained model.
func NewScorerFromParts(forest *iforest.IsolationForest, eng *features.Engineer) *Scorer {
	return &Scorer{forest: forest, eng: eng}
}

// Score classifies one raw reading. Pure with respect to prior calls: no
// score depends on earlier scoring history.
func (s *Scorer) Score(r sensor.Reading) (detectors.Score, error) {
	s.engMu.Lock()
	vec := s.eng.Vector(r)
	s.engMu.Unlock()

	return s.forest.Score(vec)
}

// Threshold returns the loaded model's alert threshold.
func (s *Scorer) Threshold() float64 {
	return s.forest.Threshold()
}
