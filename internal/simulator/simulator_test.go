package simulator

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGeneratorBaseline(t *testing.T) {
	gen := NewGenerator(1, 0)

	for i := 0; i < 200; i++ {
		r := gen.Next()
		assert.False(t, r.Injected)
		assert.InDelta(t, 300, r.TemperatureK, 2.5, "temperature stays near the 300 K baseline")
		assert.InDelta(t, 1500, r.RotationalSpeedRPM, 50, "speed stays near 1500 rpm")
	}
}

func TestGeneratorSpeedFollowsPeriodicBase(t *testing.T) {
	gen := NewGenerator(1, 0)

	// Speed is a sine base signal plus bounded noise: every reading sits
	// within the noise band around the periodic baseline, and the baseline
	// itself is actually exercised across a full period.
	low, high := math.Inf(1), math.Inf(-1)
	for i := 0; i < 200; i++ {
		r := gen.Next()
		base := 1500 + 30*math.Sin(float64(i)*0.1)
		assert.InDelta(t, base, r.RotationalSpeedRPM, 20, "reading %d off its sine baseline", i)
		low = math.Min(low, r.RotationalSpeedRPM)
		high = math.Max(high, r.RotationalSpeedRPM)
	}
	assert.Less(t, low, 1485.0, "trough of the periodic signal should be visited")
	assert.Greater(t, high, 1515.0, "crest of the periodic signal should be visited")
}

func TestGeneratorInjectionCadence(t *testing.T) {
	gen := NewGenerator(1, 10)

	for i := 0; i < 100; i++ {
		r := gen.Next()
		if i > 0 && i%10 == 0 {
			assert.True(t, r.Injected, "reading %d should carry the injected spike", i)
			assert.Equal(t, 2800.0, r.RotationalSpeedRPM)
		} else {
			assert.False(t, r.Injected, "reading %d should be normal", i)
		}
	}
}

func TestGeneratorDeterminism(t *testing.T) {
	a, b := NewGenerator(42, 10), NewGenerator(42, 10)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestGeneratorTagNotTransmitted(t *testing.T) {
	r := Reading{TemperatureK: 300, RotationalSpeedRPM: 2800, Injected: true}
	body, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "Injected")
	assert.NotContains(t, string(body), "injected")
}

func TestRunnerSubmitsAndStops(t *testing.T) {
	var received atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "temperature_k")
		assert.Contains(t, req, "rotational_speed_rpm")
		received.Add(1)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "NORMAL", "score": 0.1, "is_anomaly": false,
		})
	}))
	defer ts.Close()

	gen := NewGenerator(1, 10)
	runner := NewRunner(gen, ts.URL, time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for received.Load() < 5 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, received.Load(), int64(5))
}

func TestRunnerSurfacesRejections(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"error": "missing required field"})
	}))
	defer ts.Close()

	gen := NewGenerator(1, 0)
	runner := NewRunner(gen, ts.URL, time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Rejections are logged, not fatal; the loop keeps running until stopped.
	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
