package trainer

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"machinesentry/internal/artifact"
	"machinesentry/internal/config"
	"machinesentry/pkg/detectors"
)

func writeHistory(t *testing.T, n int) string {
	t.Helper()

	rng := rand.New(rand.NewSource(3))
	var b []byte
	b = append(b, "Air temperature [K],Rotational speed [rpm],Torque [Nm],Tool wear [min],Type\n"...)
	for i := 0; i < n; i++ {
		row := fmt.Sprintf("%.2f,%.1f,%.1f,%d,M\n",
			300+rng.Float64()*2-1,
			1500+rng.Float64()*100-50,
			40+rng.Float64()*10,
			i%200,
		)
		b = append(b, row...)
	}

	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func testConfig(t *testing.T, datasetPath string) *config.Config {
	cfg := config.Default()
	cfg.Dataset.Path = datasetPath
	cfg.Model.ArtifactPath = filepath.Join(t.TempDir(), "model.gob")
	cfg.Model.Trees = 30
	cfg.Model.SubsampleSize = 64
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t, writeHistory(t, 400))

	art, err := Run(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"sound_volume_proxy", "temperature_celsius", "humidity"}, art.FeatureNames)
	assert.InDelta(t, 26.85, art.Stats.TempMeanC, 1.0)
	assert.InDelta(t, 1500, art.Stats.RPMMean, 30.0)

	// The persisted artifact is loadable and scores.
	loaded, err := artifact.Load(cfg.Model.ArtifactPath)
	require.NoError(t, err)
	forest, err := loaded.Forest()
	require.NoError(t, err)
	_, err = forest.PredictOne([]float64{1500, 26.85, 45})
	assert.NoError(t, err)
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t, writeHistory(t, 400))
	log := zaptest.NewLogger(t)

	_, err := Run(cfg, log)
	require.NoError(t, err)
	_, err = Run(cfg, log)
	require.NoError(t, err)

	_, err = artifact.Load(cfg.Model.ArtifactPath)
	assert.NoError(t, err)
}

func TestRunDeterministic(t *testing.T) {
	dataset := writeHistory(t, 400)
	sample := []float64{1496.2, 28.25, 45.1}

	var scores [2]float64
	for i := range scores {
		cfg := testConfig(t, dataset)
		art, err := Run(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		forest, err := art.Forest()
		require.NoError(t, err)
		score, err := forest.PredictOne(sample)
		require.NoError(t, err)
		scores[i] = score
	}
	assert.Equal(t, scores[0], scores[1], "fixed seed must reproduce the model exactly")
}

func TestRunRefusesConcurrentTraining(t *testing.T) {
	cfg := testConfig(t, writeHistory(t, 100))
	lock := cfg.Model.ArtifactPath + ".lock"
	require.NoError(t, os.MkdirAll(filepath.Dir(lock), 0o755))
	require.NoError(t, os.WriteFile(lock, []byte("12345\n"), 0o644))

	_, err := Run(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in progress")
	assert.Contains(t, err.Error(), "pid 12345")
	assert.Contains(t, err.Error(), "remove the lock file")
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob.lock")

	unlock, err := acquireLock(path)
	require.NoError(t, err)

	// The lock names its owner so a stale one is diagnosable.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), strconv.Itoa(os.Getpid()))

	// Releasing removes the file so the next run can proceed.
	unlock()
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = acquireLock(path)
	require.NoError(t, err)
}

func TestRunMissingDataset(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent.csv"))

	_, err := Run(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset unavailable")

	// No partial artifact is ever written.
	_, statErr := os.Stat(cfg.Model.ArtifactPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunDegenerateDataset(t *testing.T) {
	// A single reading has no variance to split on; training must fail and
	// never persist a fallback model.
	path := filepath.Join(t.TempDir(), "single.csv")
	require.NoError(t, os.WriteFile(path,
		[]byte("Air temperature [K],Rotational speed [rpm]\n300.00,1500.0\n"), 0o644))
	cfg := testConfig(t, path)

	_, err := Run(cfg, zaptest.NewLogger(t))
	require.ErrorIs(t, err, detectors.ErrDegenerateTrainingSet)
	_, statErr := os.Stat(cfg.Model.ArtifactPath)
	assert.True(t, os.IsNotExist(statErr))
}
