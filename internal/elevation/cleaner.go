package elevation

import (
	"math"
)

// Correct runs extract -> detect -> sanitize -> reconstruct on a single
// elevation sequence. The input is never modified.
func Correct(elevations []float64, config Config) (Result, error) {
	for _, e := range elevations {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return Result{}, &StageError{Stage: StageExtract, Err: ErrNonFiniteSample}
		}
	}

	gradients, err := Gradients(elevations)
	if err != nil {
		return Result{}, &StageError{Stage: StageExtract, Err: err}
	}

	threshold, err := Threshold(gradients, config.StdFactor)
	if err != nil {
		return Result{}, &StageError{Stage: StageDetect, Err: err}
	}
	std, _ := PopStdDev(gradients)

	outliers := Outliers(gradients, threshold)
	sanitized := Sanitize(gradients, threshold)
	corrected := Reconstruct(sanitized, elevations[0])

	original := make([]float64, len(elevations))
	copy(original, elevations)

	stats := Stats{
		Points:           len(elevations),
		Gradients:        len(gradients),
		Segments:         1,
		StdFactor:        config.StdFactor,
		StdDev:           std,
		Threshold:        threshold,
		Sanitized:        len(outliers),
		SanitizedPercent: float64(len(outliers)) / float64(len(gradients)) * 100,
		MaxAbsGradient:   maxAbs(gradients),
	}
	stats.OriginalAscent, stats.OriginalDescent = climb(gradients)
	stats.CorrectedAscent, stats.CorrectedDescent = climb(sanitized)

	return Result{
		Original:  original,
		Gradients: gradients,
		Sanitized: sanitized,
		Corrected: corrected,
		Outliers:  outliers,
		Stats:     stats,
	}, nil
}

// CorrectSegments corrects a track made of several segments.
//
// By default all segments are pooled into one sequence, so the jump between
// the last point of a segment and the first point of the next one is treated
// as an ordinary gradient. With config.PerSegment every segment gets its own
// statistics; segments shorter than 2 points pass through unchanged.
//
// Empty segments contribute no samples. The result's sequences are flattened
// in segment order.
func CorrectSegments(segments [][]float64, config Config) (Result, error) {
	var (
		flat     []float64
		nonEmpty [][]float64
	)
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, seg)
		flat = append(flat, seg...)
	}

	if !config.PerSegment {
		result, err := Correct(flat, config)
		if err != nil {
			return Result{}, err
		}
		result.Stats.Segments = len(nonEmpty)
		return result, nil
	}

	if len(flat) < 2 {
		return Result{}, &StageError{Stage: StageExtract, Err: ErrInputTooShort}
	}

	combined := Result{
		Original:  flat,
		Corrected: make([]float64, 0, len(flat)),
		Stats: Stats{
			Points:    len(flat),
			Segments:  len(nonEmpty),
			StdFactor: config.StdFactor,
		},
	}

	for _, seg := range nonEmpty {
		if len(seg) < 2 {
			combined.Corrected = append(combined.Corrected, seg...)
			combined.Stats.PerSegment = append(combined.Stats.PerSegment, Stats{
				Points:    len(seg),
				Segments:  1,
				StdFactor: config.StdFactor,
			})
			continue
		}

		result, err := Correct(seg, config)
		if err != nil {
			return Result{}, err
		}

		offset := len(combined.Gradients)
		for _, idx := range result.Outliers {
			combined.Outliers = append(combined.Outliers, offset+idx)
		}
		combined.Gradients = append(combined.Gradients, result.Gradients...)
		combined.Sanitized = append(combined.Sanitized, result.Sanitized...)
		combined.Corrected = append(combined.Corrected, result.Corrected...)

		s := &combined.Stats
		s.Gradients += result.Stats.Gradients
		s.Sanitized += result.Stats.Sanitized
		s.MaxAbsGradient = math.Max(s.MaxAbsGradient, result.Stats.MaxAbsGradient)
		s.OriginalAscent += result.Stats.OriginalAscent
		s.OriginalDescent += result.Stats.OriginalDescent
		s.CorrectedAscent += result.Stats.CorrectedAscent
		s.CorrectedDescent += result.Stats.CorrectedDescent
		s.PerSegment = append(s.PerSegment, result.Stats)
	}

	if combined.Stats.Gradients > 0 {
		combined.Stats.SanitizedPercent = float64(combined.Stats.Sanitized) / float64(combined.Stats.Gradients) * 100
	}

	return combined, nil
}
