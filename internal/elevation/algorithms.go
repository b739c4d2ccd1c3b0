package elevation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Gradients returns the forward differences of an elevation sequence:
// g[i] = e[i+1] - e[i]. The result has len(e)-1 entries.
func Gradients(elevations []float64) ([]float64, error) {
	if len(elevations) < 2 {
		return nil, ErrInputTooShort
	}

	gradients := make([]float64, len(elevations)-1)
	floats.SubTo(gradients, elevations[1:], elevations[:len(elevations)-1])
	return gradients, nil
}

// PopStdDev computes the population standard deviation (divisor N)
func PopStdDev(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrInputTooShort
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std, nil
}

// Threshold returns stdFactor * population std of the gradients.
// A sequence with zero variance yields 0, so every nonzero gradient in it
// will be sanitized.
func Threshold(gradients []float64, stdFactor float64) (float64, error) {
	if stdFactor < 0 || math.IsNaN(stdFactor) || math.IsInf(stdFactor, 0) {
		return 0, ErrInvalidStdFactor
	}

	std, err := PopStdDev(gradients)
	if err != nil {
		return 0, err
	}
	return stdFactor * std, nil
}

// Sanitize returns a copy of gradients with every value whose magnitude is
// strictly greater than threshold replaced by 0.
func Sanitize(gradients []float64, threshold float64) []float64 {
	sanitized := make([]float64, len(gradients))
	copy(sanitized, gradients)

	for _, i := range Outliers(gradients, threshold) {
		sanitized[i] = 0
	}
	return sanitized
}

// Outliers lists the indices Sanitize would zero
func Outliers(gradients []float64, threshold float64) []int {
	var indices []int
	for i, g := range gradients {
		if math.Abs(g) > threshold {
			indices = append(indices, i)
		}
	}
	return indices
}

// Reconstruct integrates gradients starting at first. Each value builds on
// the previous corrected value, so a zeroed gradient shifts everything after it.
func Reconstruct(gradients []float64, first float64) []float64 {
	seed := make([]float64, len(gradients)+1)
	seed[0] = first
	copy(seed[1:], gradients)

	corrected := make([]float64, len(seed))
	floats.CumSum(corrected, seed)
	return corrected
}

// climb sums positive and negative gradients separately (meters up, meters down)
func climb(gradients []float64) (ascent, descent float64) {
	for _, g := range gradients {
		if g > 0 {
			ascent += g
		} else {
			descent -= g
		}
	}
	return ascent, descent
}

// maxAbs returns the largest gradient magnitude, 0 for an empty slice
func maxAbs(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Norm(values, math.Inf(1))
}
