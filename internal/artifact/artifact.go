// Package artifact persists trained models to disk and loads them back.
//
// An artifact is the sole source of truth for serving: it bundles the
// serialized forest with the feature schema and the engineer statistics fitted
// at training time, so the scoring path can never drift from the training
// path. Files are published atomically (write to a temp file, then rename) and
// never mutated after write.
package artifact

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"machinesentry/pkg/detectors/iforest"
	"machinesentry/pkg/features"
)

// Version identifies the on-disk layout. Bumped on incompatible changes.
const Version = 1

// Artifact is the durable form of a trained anomaly model.
type Artifact struct {
	Version      int
	FeatureNames []string
	Stats        features.Stats
	Model        []byte
}

// New builds an artifact from a trained forest and a fitted engineer.
func New(forest *iforest.IsolationForest, eng *features.Engineer) (*Artifact, error) {
	model, err := forest.Save()
	if err != nil {
		return nil, fmt.Errorf("serialize model: %w", err)
	}
	return &Artifact{
		Version:      Version,
		FeatureNames: eng.FeatureNames(),
		Stats:        eng.Stats(),
		Model:        model,
	}, nil
}

// Save writes the artifact to path, overwriting any previous artifact. The
// write is atomic: a reader sees either the old file in full or the new file
// in full, never a partial one.
func (a *Artifact) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(a); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// Load reads an artifact from path. Absence or corruption is returned as an
// error; callers treat it as fatal at startup.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var a Artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Version != Version {
		return nil, fmt.Errorf("artifact version %d not supported (want %d)", a.Version, Version)
	}
	if len(a.Model) == 0 {
		return nil, fmt.Errorf("artifact holds no model")
	}
	return &a, nil
}

// Forest deserializes the embedded model.
func (a *Artifact) Forest() (*iforest.IsolationForest, error) {
	f := iforest.New()
	if err := f.Load(a.Model); err != nil {
		return nil, fmt.Errorf("load model from artifact: %w", err)
	}
	if f.Dims() != len(a.FeatureNames) {
		return nil, fmt.Errorf("artifact schema mismatch: %d feature names for a %d-feature model",
			len(a.FeatureNames), f.Dims())
	}
	return f, nil
}
