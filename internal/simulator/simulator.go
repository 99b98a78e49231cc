// Package simulator generates a synthetic stream of sensor readings and
// submits them to the scoring service, surfacing every response.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Reading is one simulated measurement. Injected marks readings whose speed
// was overridden with a fault spike; it is for offline verification only and
// is never transmitted — the service must detect the spike unaided.
type Reading struct {
	TemperatureK       float64 `json:"temperature_k"`
	RotationalSpeedRPM float64 `json:"rotational_speed_rpm"`
	Injected           bool    `json:"-"`
}

// Generator produces an unbounded lazy sequence of readings: rotational speed
// follows a smooth periodic base signal plus bounded noise, temperature a
// separate slow-varying baseline plus noise, and a scheduled
// out-of-distribution speed spike every AnomalyEvery readings.
type Generator struct {
	anomalyEvery int
	spikeRPM     float64
	t            int
	rng          *rand.Rand
}

// NewGenerator creates a seeded generator. anomalyEvery <= 0 disables
// injection.
func NewGenerator(seed int64, anomalyEvery int) *Generator {
	return &Generator{
		anomalyEvery: anomalyEvery,
		spikeRPM:     2800,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next reading in the sequence.
func (g *Generator) Next() Reading {
	t := float64(g.t)
	r := Reading{
		TemperatureK:       300 + 2*math.Sin(t*0.01) + g.rng.Float64() - 0.5,
		RotationalSpeedRPM: 1500 + 30*math.Sin(t*0.1) + g.rng.Float64()*40 - 20,
	}
	if g.anomalyEvery > 0 && g.t > 0 && g.t%g.anomalyEvery == 0 {
		r.RotationalSpeedRPM = g.spikeRPM
		r.Injected = true
	}
	g.t++
	return r
}

// Runner drives the submit loop: one request, one response, a fixed sleep,
// repeat. It never pipelines and stops cleanly between iterations.
type Runner struct {
	gen      *Generator
	client   *http.Client
	url      string
	interval time.Duration
	log      *zap.Logger
}

// NewRunner creates a runner posting to url on the given cadence.
func NewRunner(gen *Generator, url string, interval time.Duration, log *zap.Logger) *Runner {
	return &Runner{
		gen:      gen,
		client:   &http.Client{Timeout: 10 * time.Second},
		url:      url,
		interval: interval,
		log:      log,
	}
}

type scoreResponse struct {
	Status    string  `json:"status"`
	Score     float64 `json:"score"`
	IsAnomaly bool    `json:"is_anomaly"`
	Error     string  `json:"error"`
}

// Run submits readings until ctx is cancelled. Every response — normal,
// alert, or rejection — is surfaced to the log; nothing is dropped silently.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		reading := r.gen.Next()
		if reading.Injected {
			r.log.Info("injecting anomaly", zap.Float64("rotational_speed_rpm", reading.RotationalSpeedRPM))
		}

		if err := r.submit(ctx, reading); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("submit failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) submit(ctx context.Context, reading Reading) error {
	body, err := json.Marshal(reading)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode != http.StatusOK:
		r.log.Warn("reading rejected",
			zap.Int("http_status", resp.StatusCode),
			zap.String("error", result.Error),
		)
	case result.IsAnomaly:
		r.log.Info("response",
			zap.String("status", result.Status),
			zap.Float64("score", result.Score),
			zap.Bool("injected", reading.Injected),
		)
	default:
		r.log.Info("response",
			zap.String("status", result.Status),
			zap.Float64("score", result.Score),
		)
	}
	return nil
}
