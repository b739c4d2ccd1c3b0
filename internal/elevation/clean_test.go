package elevation

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// noisyTrack builds a gently climbing track with a few single-point spikes
func noisyTrack(n int, spikes map[int]float64) []float64 {
	elevations := make([]float64, n)
	elevations[0] = 500
	for i := 1; i < n; i++ {
		elevations[i] = elevations[i-1] + math.Sin(0.7*float64(i-1)) + 0.3
	}
	for idx, delta := range spikes {
		elevations[idx] += delta
	}
	return elevations
}

func TestGradients(t *testing.T) {
	gradients, err := Gradients([]float64{100, 105, 103, 500, 108, 110})
	require.NoError(t, err)

	want := []float64{5, -2, 397, -392, 2}
	if diff := cmp.Diff(want, gradients); diff != "" {
		t.Errorf("Gradients mismatch (-want +got):\n%s", diff)
	}
}

func TestGradientsTooShort(t *testing.T) {
	for _, input := range [][]float64{nil, {}, {42}} {
		_, err := Gradients(input)
		assert.ErrorIs(t, err, ErrInputTooShort, "input %v", input)
	}
}

func TestGradientsLength(t *testing.T) {
	for n := 2; n < 50; n++ {
		gradients, err := Gradients(noisyTrack(n, nil))
		require.NoError(t, err)
		assert.Len(t, gradients, n-1)
	}
}

func TestRoundTripWithoutSanitization(t *testing.T) {
	elevations := noisyTrack(120, map[int]float64{30: 40, 31: -15})

	gradients, err := Gradients(elevations)
	require.NoError(t, err)

	sanitized := Sanitize(gradients, math.Inf(1))
	rebuilt := Reconstruct(sanitized, elevations[0])

	if diff := cmp.Diff(elevations, rebuilt, approx); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestThresholdPopulationStd(t *testing.T) {
	gradients := []float64{5, -2, 397, -392, 2}

	std, err := PopStdDev(gradients)
	require.NoError(t, err)
	// biased estimator: divide by N, not N-1
	assert.InDelta(t, 249.5139, std, 1e-3)

	threshold, err := Threshold(gradients, DefaultStdFactor)
	require.NoError(t, err)
	assert.InDelta(t, 723.5904, threshold, 1e-3)
}

func TestThresholdInvalidFactor(t *testing.T) {
	gradients := []float64{1, 2, 3}
	for _, factor := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := Threshold(gradients, factor)
		assert.ErrorIs(t, err, ErrInvalidStdFactor)
	}

	_, err := Threshold(nil, DefaultStdFactor)
	assert.ErrorIs(t, err, ErrInputTooShort)
}

func TestThresholdZeroVariance(t *testing.T) {
	threshold, err := Threshold([]float64{2, 2, 2}, DefaultStdFactor)
	require.NoError(t, err)
	assert.Zero(t, threshold)
}

func TestSanitizeKeepsValuesAtThreshold(t *testing.T) {
	gradients := []float64{1, -3, 3, 3.0001, -4}
	sanitized := Sanitize(gradients, 3)

	assert.Equal(t, []float64{1, -3, 3, 0, 0}, sanitized)
	assert.Equal(t, []int{3, 4}, Outliers(gradients, 3))
	// input untouched
	assert.Equal(t, []float64{1, -3, 3, 3.0001, -4}, gradients)
}

func TestReconstruct(t *testing.T) {
	corrected := Reconstruct([]float64{5, -2, 0, 0, 2}, 100)
	assert.Equal(t, []float64{100, 105, 103, 103, 103, 105}, corrected)

	assert.Equal(t, []float64{7}, Reconstruct(nil, 7))
}

func TestReconstructShiftsAfterZeroedGradient(t *testing.T) {
	// a zeroed gradient moves the baseline for every later sample
	elevations := []float64{10, 11, 50, 51, 52}
	gradients, err := Gradients(elevations)
	require.NoError(t, err)

	sanitized := Sanitize(gradients, 5)
	corrected := Reconstruct(sanitized, elevations[0])

	assert.Equal(t, []float64{10, 11, 11, 12, 13}, corrected)
}

func TestCorrectConcreteScenario(t *testing.T) {
	input := []float64{100, 105, 103, 500, 108, 110}

	result, err := Correct(input, DefaultConfig())
	require.NoError(t, err)

	// the spikes are large but so is the std of such a short sample
	assert.Zero(t, result.Stats.Sanitized)
	assert.Empty(t, result.Outliers)
	if diff := cmp.Diff(input, result.Corrected, approx); diff != "" {
		t.Errorf("expected unchanged output (-want +got):\n%s", diff)
	}
}

func TestCorrectAllEqualGradients(t *testing.T) {
	input := []float64{10, 12, 14, 16, 18}

	result, err := Correct(input, DefaultConfig())
	require.NoError(t, err)

	assert.Zero(t, result.Stats.Threshold)
	assert.Equal(t, []float64{0, 0, 0, 0}, result.Sanitized)
	assert.Equal(t, []float64{10, 10, 10, 10, 10}, result.Corrected)
	assert.Equal(t, 4, result.Stats.Sanitized)
}

func TestCorrectFiltersSpikes(t *testing.T) {
	gradients := make([]float64, 200)
	for i := range gradients {
		gradients[i] = math.Sin(0.7 * float64(i))
	}
	spikes := map[int]float64{40: 80, 90: -80, 140: 75, 180: -70}
	for idx, v := range spikes {
		gradients[idx] = v
	}
	elevations := Reconstruct(gradients, 100)

	result, err := Correct(elevations, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []int{40, 90, 140, 180}, result.Outliers)
	assert.InDelta(t, 31.384, result.Stats.Threshold, 1e-2)
	for i, g := range result.Sanitized {
		if _, spike := spikes[i]; spike {
			assert.Zero(t, g, "gradient %d", i)
			continue
		}
		assert.InDelta(t, gradients[i], g, 1e-9, "gradient %d", i)
	}
	assert.Len(t, result.Corrected, len(elevations))
	assert.Equal(t, elevations[0], result.Corrected[0])
}

func TestCorrectSecondPassIsStable(t *testing.T) {
	elevations := noisyTrack(300, map[int]float64{50: 60, 120: 60, 200: 60, 260: 60})

	first, err := Correct(elevations, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 8, first.Stats.Sanitized)

	second, err := Correct(first.Corrected, DefaultConfig())
	require.NoError(t, err)

	changed := 0
	for i := range first.Corrected {
		if math.Abs(first.Corrected[i]-second.Corrected[i]) > 1e-9 {
			changed++
		}
	}
	assert.LessOrEqual(t, float64(changed)/float64(len(elevations)), 0.05)
	assert.LessOrEqual(t, second.Stats.Sanitized, first.Stats.Sanitized)
}

func TestCorrectDoesNotMutateInput(t *testing.T) {
	input := []float64{10, 12, 14, 16, 18}
	_, err := Correct(input, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12, 14, 16, 18}, input)
}

func TestCorrectErrorsNameStage(t *testing.T) {
	_, err := Correct([]float64{1}, DefaultConfig())
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageExtract, stageErr.Stage)
	assert.ErrorIs(t, err, ErrInputTooShort)

	_, err = Correct([]float64{1, 2, 3}, Config{StdFactor: -2})
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageDetect, stageErr.Stage)
	assert.ErrorIs(t, err, ErrInvalidStdFactor)

	_, err = Correct([]float64{1, math.NaN(), 3}, DefaultConfig())
	assert.ErrorIs(t, err, ErrNonFiniteSample)
}

func TestCorrectSegmentsPooled(t *testing.T) {
	segments := [][]float64{{10, 12, 14}, {}, {16, 18}}

	result, err := CorrectSegments(segments, DefaultConfig())
	require.NoError(t, err)

	// the boundary 14 -> 16 counts as a regular gradient
	assert.Equal(t, 4, result.Stats.Gradients)
	assert.Equal(t, 2, result.Stats.Segments)
	assert.Equal(t, []float64{10, 10, 10, 10, 10}, result.Corrected)
	assert.Empty(t, result.Stats.PerSegment)
}

func TestCorrectSegmentsPerSegment(t *testing.T) {
	segments := [][]float64{
		{100, 101, 102, 103},
		{500},
		{200, 199, 198},
	}
	config := DefaultConfig()
	config.PerSegment = true

	result, err := CorrectSegments(segments, config)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.Segments)
	assert.Equal(t, 5, result.Stats.Gradients)
	require.Len(t, result.Stats.PerSegment, 3)
	assert.Equal(t, 1, result.Stats.PerSegment[1].Points)
	// constant slope within each segment: zero variance, so every step is zeroed
	assert.Equal(t, []float64{100, 100, 100, 100, 500, 200, 200, 200}, result.Corrected)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, result.Outliers)
	assert.Len(t, result.Original, 8)
}

func TestCorrectSegmentsTooShort(t *testing.T) {
	config := DefaultConfig()
	for _, perSegment := range []bool{false, true} {
		config.PerSegment = perSegment
		_, err := CorrectSegments([][]float64{{}, {42}, {}}, config)
		assert.ErrorIs(t, err, ErrInputTooShort, "perSegment=%v", perSegment)
	}
}

func TestStatsClimb(t *testing.T) {
	result, err := Correct([]float64{100, 110, 105, 105, 120}, Config{StdFactor: 100})
	require.NoError(t, err)

	assert.Equal(t, 25.0, result.Stats.OriginalAscent)
	assert.Equal(t, 5.0, result.Stats.OriginalDescent)
	assert.Equal(t, 15.0, result.Stats.MaxAbsGradient)
	assert.Equal(t, result.Stats.OriginalAscent, result.Stats.CorrectedAscent)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 2.9, config.StdFactor)
	assert.False(t, config.PerSegment)
}
