// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"math/rand"
	"sync"

	"machinesentry/pkg/detectors"
)

// IsolationForest implements unsupervised anomaly detection using isolation trees.
//
// All randomness flows through the rng installed at construction time, so two
// forests built with the same seed, options and data are identical. Once Fit
// (or Load) returns, the forest is immutable and safe for concurrent scoring.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	threshold     float64
	maxDepth      int
	rng           *rand.Rand

	// Trained model
	trees   []*iTree
	dims    int
	trained bool

	// Statistics from training
	avgPathLength float64
}

// iTree represents a single isolation tree.
type iTree struct {
	Root *node
}

// node is a node in the isolation tree. Fields are exported for gob.
type node struct {
	// Split parameters (for internal nodes)
	SplitFeature int
	SplitValue   float64

	// Children
	Left  *node
	Right *node

	// Leaf information
	Size int // number of samples that reached this leaf
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies. When positive,
// Fit derives the alert threshold from the training score distribution.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithThreshold fixes the alert threshold directly. Ignored when a positive
// contamination is set.
func WithThreshold(t float64) Option {
	return func(f *IsolationForest) {
		f.threshold = t
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	cfg := detectors.DefaultConfig()
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: cfg.Contamination,
		threshold:     cfg.Threshold,
		rng:           rand.New(rand.NewSource(cfg.RandomSeed)),
	}

	for _, opt := range opts {
		opt(f)
	}

	// Max depth based on sample size
	f.maxDepth = int(math.Ceil(math.Log2(float64(f.sampleSize))))

	return f
}

// Fit trains the Isolation Forest on the provided data.
//
// It fails on an empty set, on rows of unequal width, and on a degenerate set
// where no feature varies at all; a degenerate model would assign every point
// the same score and must not be produced silently.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return detectors.ErrEmptyTrainingSet
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	for _, row := range data[1:] {
		if len(row) != nFeatures {
			return &detectors.SchemaMismatchError{Want: nFeatures, Got: len(row)}
		}
	}
	if !hasVariance(data, nFeatures) {
		return detectors.ErrDegenerateTrainingSet
	}

	// Adjust sample size if needed
	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}

	// Build trees
	f.trees = make([]*iTree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		// Sample without replacement
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		f.trees[i] = &iTree{Root: f.buildNode(sample, nFeatures, 0)}
	}

	// Calculate average path length for normalization
	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.dims = nFeatures
	f.trained = true

	// Set threshold based on contamination
	if f.contamination > 0 {
		scores, _ := f.predict(data)
		f.threshold = percentile(scores, 100*(1-f.contamination))
	}

	return nil
}

// hasVariance reports whether at least one feature takes more than one value.
func hasVariance(data [][]float64, nFeatures int) bool {
	for j := 0; j < nFeatures; j++ {
		first := data[0][j]
		for _, row := range data[1:] {
			if row[j] != first {
				return true
			}
		}
	}
	return false
}

func (f *IsolationForest) buildNode(data [][]float64, nFeatures, depth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= f.maxDepth || n <= 1 {
		return &node{Size: n}
	}

	// Candidate features are those that still vary within this node's points;
	// a constant coordinate can never separate anything.
	type span struct {
		feature  int
		min, max float64
	}
	var candidates []span
	for j := 0; j < nFeatures; j++ {
		minVal, maxVal := data[0][j], data[0][j]
		for _, row := range data[1:] {
			if row[j] < minVal {
				minVal = row[j]
			}
			if row[j] > maxVal {
				maxVal = row[j]
			}
		}
		if minVal < maxVal {
			candidates = append(candidates, span{feature: j, min: minVal, max: maxVal})
		}
	}
	if len(candidates) == 0 {
		// All remaining points coincide.
		return &node{Size: n}
	}

	chosen := candidates[f.rng.Intn(len(candidates))]
	splitValue := chosen.min + f.rng.Float64()*(chosen.max-chosen.min)

	// Partition data
	var leftData, rightData [][]float64
	for _, row := range data {
		if row[chosen.feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		SplitFeature: chosen.feature,
		SplitValue:   splitValue,
		Left:         f.buildNode(leftData, nFeatures, depth+1),
		Right:        f.buildNode(rightData, nFeatures, depth+1),
	}
}

// Predict returns anomaly scores for the given samples.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	return f.predict(data)
}

func (f *IsolationForest) predict(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		score, err := f.predictOne(sample)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}

	return scores, nil
}

// PredictOne returns the anomaly score for a single sample.
func (f *IsolationForest) PredictOne(sample []float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return 0, detectors.ErrNotTrained
	}

	return f.predictOne(sample)
}

func (f *IsolationForest) predictOne(sample []float64) (float64, error) {
	if len(sample) != f.dims {
		return 0, &detectors.SchemaMismatchError{Want: f.dims, Got: len(sample)}
	}

	// Average path length across all trees
	var totalPath float64
	for _, tree := range f.trees {
		totalPath += pathLength(sample, tree.Root, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	// Anomaly score: 2^(-avgPath / c(n))
	// Higher score = more anomalous
	score := math.Pow(2, -avgPath/f.avgPathLength)

	return score, nil
}

// Score classifies a single sample, packaging the raw value, the signed
// decision value and the label.
func (f *IsolationForest) Score(sample []float64) (detectors.Score, error) {
	raw, err := f.PredictOne(sample)
	if err != nil {
		return detectors.Score{}, err
	}

	f.mu.RLock()
	threshold := f.threshold
	f.mu.RUnlock()

	s := detectors.Score{
		Value:     raw,
		Decision:  threshold - raw,
		Label:     detectors.LabelNormal,
		IsAnomaly: raw >= threshold,
		Features:  sample,
	}
	if s.IsAnomaly {
		s.Label = detectors.LabelAlert
	}
	return s, nil
}

// Dims returns the feature count the forest was trained on.
func (f *IsolationForest) Dims() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dims
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node, currentDepth int) float64 {
	if n.Left == nil && n.Right == nil {
		// Leaf node: add expected path length for remaining isolation
		return float64(currentDepth) + averagePathLength(float64(n.Size))
	}

	if sample[n.SplitFeature] < n.SplitValue {
		return pathLength(sample, n.Left, currentDepth+1)
	}
	return pathLength(sample, n.Right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H is harmonic number
	// Approximation: H(n) ≈ ln(n) + 0.5772156649 (Euler-Mascheroni constant)
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// PredictStream processes samples from a channel.
func (f *IsolationForest) PredictStream(ctx context.Context, input <-chan []float64, output chan<- detectors.Score) error {
	defer close(output)

	f.mu.RLock()
	if !f.trained {
		f.mu.RUnlock()
		return detectors.ErrNotTrained
	}
	f.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-input:
			if !ok {
				return nil
			}

			score, err := f.Score(sample)
			if err != nil {
				continue
			}

			select {
			case output <- score:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Save serializes the trained model.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	for _, v := range []any{f.nTrees, f.sampleSize, f.contamination, f.threshold, f.avgPathLength, f.dims} {
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	if err := enc.Encode(f.trees); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *IsolationForest) Load(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)

	for _, v := range []any{&f.nTrees, &f.sampleSize, &f.contamination, &f.threshold, &f.avgPathLength, &f.dims} {
		if err := dec.Decode(v); err != nil {
			return err
		}
	}
	if err := dec.Decode(&f.trees); err != nil {
		return err
	}

	f.maxDepth = int(math.Ceil(math.Log2(float64(f.sampleSize))))
	f.trained = true

	return nil
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// SetThreshold updates the anomaly threshold.
func (f *IsolationForest) SetThreshold(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
}

// percentile calculates the p-th percentile of the data.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)

	// Simple insertion sort for small arrays
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
