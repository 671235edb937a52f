// Package vecmath holds the numeric routines used for scoring: batched cosine
// similarity, softmax and entropy. Nothing here keeps state or does I/O.
package vecmath

import (
	"errors"
	"math"
)

// Epsilon is the lower clamp for norms and softmax denominators.
const Epsilon = 1e-12

// ErrDimensionMismatch is returned when two matrices do not share a column
// count or a matrix has rows of different lengths.
var ErrDimensionMismatch = errors.New("vecmath: dimension mismatch")

// CosineSimilarityMatrix returns the N×M matrix of cosine similarities between
// the rows of a (N×D) and the rows of b (M×D). Zero rows compare as 0 with
// everything.
func CosineSimilarityMatrix(a, b [][]float32) ([][]float64, error) {
	colsA, err := columns(a)
	if err != nil {
		return nil, err
	}
	colsB, err := columns(b)
	if err != nil {
		return nil, err
	}
	if len(a) > 0 && len(b) > 0 && colsA != colsB {
		return nil, ErrDimensionMismatch
	}

	normsB := make([]float64, len(b))
	for j, row := range b {
		normsB[j] = math.Max(norm(row), Epsilon)
	}

	out := make([][]float64, len(a))
	for i, rowA := range a {
		normA := math.Max(norm(rowA), Epsilon)
		out[i] = make([]float64, len(b))
		for j, rowB := range b {
			var dot float64
			for k := range rowA {
				dot += float64(rowA[k]) * float64(rowB[k])
			}
			out[i][j] = dot / (normA * normsB[j])
		}
	}
	return out, nil
}

// Softmax converts logits into probabilities. The maximum is subtracted
// before exponentiating.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return []float64{}
	}
	peak := logits[0]
	for _, v := range logits[1:] {
		if v > peak {
			peak = v
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	sum = math.Max(sum, Epsilon)
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Entropy returns the Shannon entropy in nats. Each probability is clamped to
// [1e-12, 1] before taking the logarithm.
func Entropy(probabilities []float64) float64 {
	var h float64
	for _, p := range probabilities {
		p = math.Min(math.Max(p, Epsilon), 1.0)
		h -= p * math.Log(p)
	}
	return h
}

// Normalize returns v scaled to unit L2 length. Zero vectors come back as
// zeros.
func Normalize(v []float32) []float32 {
	n := math.Max(norm(v), Epsilon)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// columns returns the shared row length of m, or ErrDimensionMismatch for
// ragged input.
func columns(m [][]float32) (int, error) {
	if len(m) == 0 {
		return 0, nil
	}
	cols := len(m[0])
	for _, row := range m[1:] {
		if len(row) != cols {
			return 0, ErrDimensionMismatch
		}
	}
	return cols, nil
}
