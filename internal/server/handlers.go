package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"machinesentry/internal/metrics"
	"machinesentry/pkg/detectors"
	"machinesentry/pkg/sensor"
)

// Handler serves the scoring endpoints.
type Handler struct {
	scorer       *Scorer
	log          *zap.Logger
	scoreTimeout time.Duration
}

// NewHandler creates the HTTP handler set around a ready Scorer.
func NewHandler(scorer *Scorer, log *zap.Logger, scoreTimeout time.Duration) *Handler {
	if scoreTimeout <= 0 {
		scoreTimeout = 5 * time.Second
	}
	return &Handler{scorer: scorer, log: log, scoreTimeout: scoreTimeout}
}

// scoreRequest is the wire format of a scoring request. Required fields are
// pointers so absence is distinguishable from zero.
type scoreRequest struct {
	TemperatureK       *float64 `json:"temperature_k"`
	RotationalSpeedRPM *float64 `json:"rotational_speed_rpm"`
	Torque             *float64 `json:"torque"`
	ToolWear           *float64 `json:"tool_wear"`
	Type               string   `json:"type"`
}

// scoreResponse is the wire format of a scoring response. Score is the signed
// decision value: positive for normal readings, negative for anomalies.
type scoreResponse struct {
	Status    detectors.Label `json:"status"`
	Score     float64         `json:"score"`
	IsAnomaly bool            `json:"is_anomaly"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Predict handles POST /predict.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, "/predict").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/predict", "405").Inc()
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req scoreRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		// Includes non-numeric values for numeric fields; rejected
		// per-request, never fatal for the service.
		metrics.RequestsTotal.WithLabelValues(r.Method, "/predict", "400").Inc()
		metrics.ValidationFailures.Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Kind: "validation"})
		return
	}
	if msg := validate(&req); msg != "" {
		metrics.RequestsTotal.WithLabelValues(r.Method, "/predict", "422").Inc()
		metrics.ValidationFailures.Inc()
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msg, Kind: "validation"})
		return
	}

	reading := sensor.Reading{
		AirTempK:           *req.TemperatureK,
		RotationalSpeedRPM: *req.RotationalSpeedRPM,
		ProductType:        req.Type,
	}
	if req.Torque != nil {
		reading.TorqueNm = *req.Torque
	}
	if req.ToolWear != nil {
		reading.ToolWearMin = *req.ToolWear
	}

	score, err := h.scoreWithTimeout(r, reading)
	if err != nil {
		status, kind := scoreErrorStatus(err)
		metrics.RequestsTotal.WithLabelValues(r.Method, "/predict", strconv.Itoa(status)).Inc()
		h.log.Warn("scoring failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
		return
	}

	metrics.ReadingsScored.Inc()
	metrics.ScoringLatency.Observe(time.Since(start).Seconds())
	metrics.LastScore.Set(score.Value)
	if score.IsAnomaly {
		metrics.AnomaliesDetected.Inc()
		h.log.Info("anomaly detected",
			zap.Float64("temperature_k", reading.AirTempK),
			zap.Float64("rotational_speed_rpm", reading.RotationalSpeedRPM),
			zap.Float64("score", score.Decision),
		)
	}

	metrics.RequestsTotal.WithLabelValues(r.Method, "/predict", "200").Inc()
	writeJSON(w, http.StatusOK, scoreResponse{
		Status:    score.Label,
		Score:     score.Decision,
		IsAnomaly: score.IsAnomaly,
	})
}

// scoreWithTimeout bounds a single scoring call. Tree depth is capped at fit
// time so this is a defensive bound, not an expected path.
func (h *Handler) scoreWithTimeout(r *http.Request, reading sensor.Reading) (detectors.Score, error) {
	type result struct {
		score detectors.Score
		err   error
	}
	done := make(chan result, 1)
	go func() {
		s, err := h.scorer.Score(reading)
		done <- result{s, err}
	}()

	timer := time.NewTimer(h.scoreTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.score, res.err
	case <-r.Context().Done():
		return detectors.Score{}, r.Context().Err()
	case <-timer.C:
		return detectors.Score{}, errors.New("scoring timed out")
	}
}

func validate(req *scoreRequest) string {
	switch {
	case req.TemperatureK == nil:
		return "missing required field: temperature_k"
	case req.RotationalSpeedRPM == nil:
		return "missing required field: rotational_speed_rpm"
	}
	return ""
}

func scoreErrorStatus(err error) (int, string) {
	switch {
	case detectors.IsSchemaMismatch(err):
		return http.StatusUnprocessableEntity, "schema_mismatch"
	case errors.Is(err, detectors.ErrNotTrained):
		return http.StatusServiceUnavailable, "model_unavailable"
	default:
		return http.StatusInternalServerError, ""
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "running",
		"model_loaded": h.scorer != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
