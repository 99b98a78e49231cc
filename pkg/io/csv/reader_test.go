package csv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleDataset = `UDI,Product ID,Type,Air temperature [K],Process temperature [K],Rotational speed [rpm],Torque [Nm],Tool wear [min],Target
1,M14860,M,298.1,308.6,1551,42.8,0,0
2,L47181,L,298.2,308.7,1408,46.3,3,0
3,L47182,L,298.1,308.5,1498,49.4,5,0
`

func TestReadDataset(t *testing.T) {
	r, err := NewReader(writeDataset(t, sampleDataset))
	require.NoError(t, err)
	defer r.Close()

	readings, err := r.Read()
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 0, r.Skipped())

	first := readings[0]
	assert.Equal(t, 298.1, first.AirTempK)
	assert.Equal(t, 308.6, first.ProcessTempK)
	assert.Equal(t, 1551.0, first.RotationalSpeedRPM)
	assert.Equal(t, 42.8, first.TorqueNm)
	assert.Equal(t, 0.0, first.ToolWearMin)
	assert.Equal(t, "M", first.ProductType)
}

func TestSkipsMalformedRows(t *testing.T) {
	dataset := `Air temperature [K],Rotational speed [rpm]
298.1,1551
not-a-number,1400
298.2,
298.3,1498
`
	r, err := NewReader(writeDataset(t, dataset))
	require.NoError(t, err)
	defer r.Close()

	readings, err := r.Read()
	require.NoError(t, err)
	assert.Len(t, readings, 2)
	assert.Equal(t, 2, r.Skipped())
}

func TestMissingRequiredColumn(t *testing.T) {
	dataset := `Air temperature [K],Torque [Nm]
298.1,42.8
`
	_, err := NewReader(writeDataset(t, dataset))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotational speed")
}

func TestEmptyFile(t *testing.T) {
	_, err := NewReader(writeDataset(t, ""))
	require.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestStream(t *testing.T) {
	r, err := NewReader(writeDataset(t, sampleDataset))
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Stream(ctx)
	require.NoError(t, err)

	count := 0
	for range ch {
		count++
	}
	assert.Equal(t, 3, count)
}
