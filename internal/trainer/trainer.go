// Package trainer runs the batch training pipeline: historical readings in,
// persisted model artifact out.
package trainer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"machinesentry/internal/artifact"
	"machinesentry/internal/config"
	"machinesentry/pkg/detectors/iforest"
	"machinesentry/pkg/features"
	datacsv "machinesentry/pkg/io/csv"
)

// Humidity jitter is wider during training than at scoring time; the batch
// noise gives the model a realistic spread to learn from.
const trainingJitter = 2.5

// Run trains a model from the configured dataset and persists it atomically,
// overwriting any previous artifact. The dataset's absence is a fatal
// precondition; no training data is ever fabricated. At most one training run
// may target an artifact at a time.
func Run(cfg *config.Config, log *zap.Logger) (*artifact.Artifact, error) {
	if _, err := os.Stat(cfg.Dataset.Path); err != nil {
		return nil, fmt.Errorf("dataset unavailable at %s: %w", cfg.Dataset.Path, err)
	}

	unlock, err := acquireLock(cfg.Model.ArtifactPath + ".lock")
	if err != nil {
		return nil, err
	}
	defer unlock()

	reader, err := datacsv.NewReader(cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer reader.Close()

	readings, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("dataset %s holds no usable readings", cfg.Dataset.Path)
	}
	log.Info("dataset loaded",
		zap.String("path", cfg.Dataset.Path),
		zap.Int("readings", len(readings)),
		zap.Int("skipped_rows", reader.Skipped()),
	)

	eng := features.New(
		features.WithSeed(cfg.Model.Seed),
		features.WithJitter(trainingJitter),
	)
	stats := eng.FitStats(readings)
	vectors := eng.Vectors(readings)
	log.Info("features engineered",
		zap.Strings("features", eng.FeatureNames()),
		zap.Float64("temp_mean_c", stats.TempMeanC),
		zap.Float64("rpm_mean", stats.RPMMean),
	)

	forest := iforest.New(
		iforest.WithTrees(cfg.Model.Trees),
		iforest.WithSampleSize(cfg.Model.SubsampleSize),
		iforest.WithSeed(cfg.Model.Seed),
		iforest.WithContamination(cfg.Model.Contamination),
		iforest.WithThreshold(cfg.Model.Threshold),
	)
	if err := forest.Fit(vectors); err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}
	log.Info("model trained",
		zap.Int("trees", cfg.Model.Trees),
		zap.Int("subsample_size", cfg.Model.SubsampleSize),
		zap.Float64("threshold", forest.Threshold()),
	)

	art, err := artifact.New(forest, eng)
	if err != nil {
		return nil, err
	}
	if err := art.Save(cfg.Model.ArtifactPath); err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}
	log.Info("artifact persisted", zap.String("path", cfg.Model.ArtifactPath))

	return art, nil
}

// acquireLock takes an exclusive training lock so two trainer instances never
// race on the same artifact. The lock records the owning pid; if a trainer
// crashed and left it behind, the error tells the operator what to remove.
func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			owner := "unknown"
			if data, readErr := os.ReadFile(path); readErr == nil && len(strings.TrimSpace(string(data))) > 0 {
				owner = "pid " + strings.TrimSpace(string(data))
			}
			return nil, fmt.Errorf("another training run is in progress (lock %s held by %s); remove the lock file if no trainer is running", path, owner)
		}
		return nil, fmt.Errorf("acquire training lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() { os.Remove(path) }, nil
}
