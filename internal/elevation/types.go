package elevation

import (
	"errors"
	"fmt"
)

var (
	// ErrInputTooShort is returned when fewer than two elevation samples are
	// available, so no gradient can be computed.
	ErrInputTooShort = errors.New("need at least 2 elevation samples")

	// ErrInvalidStdFactor is returned for negative or non-finite std factors.
	ErrInvalidStdFactor = errors.New("std factor must be a finite number >= 0")

	// ErrNonFiniteSample is returned when an elevation is NaN or infinite.
	ErrNonFiniteSample = errors.New("elevation sample is not a finite number")
)

// Stage names a step of the correction pipeline
type Stage string

const (
	StageExtract Stage = "extract"
	StageDetect  Stage = "detect"
)

// StageError records which pipeline step failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// DefaultStdFactor is the number of standard deviations a gradient may reach
// before it is treated as a sensor artifact.
const DefaultStdFactor = 2.9

// Config holds correction parameters
type Config struct {
	StdFactor float64 // multiplier applied to the gradient std

	// PerSegment computes statistics for every track segment on its own
	// instead of pooling all points into one sequence.
	PerSegment bool
}

// DefaultConfig pools all segments and zeroes gradients beyond 2.9 sigma
func DefaultConfig() Config {
	return Config{
		StdFactor:  DefaultStdFactor,
		PerSegment: false,
	}
}

// Stats summarizes one correction run
type Stats struct {
	// Input
	Points    int `json:"points"`
	Gradients int `json:"gradients"`
	Segments  int `json:"segments"`

	// Detection
	StdFactor float64 `json:"std_factor"`
	StdDev    float64 `json:"gradient_std_m"`
	Threshold float64 `json:"threshold_m"`

	// Results
	Sanitized        int     `json:"sanitized_gradients"`
	SanitizedPercent float64 `json:"sanitized_percent"`
	MaxAbsGradient   float64 `json:"max_abs_gradient_m"`

	// Climb before and after correction
	OriginalAscent   float64 `json:"original_ascent_m"`
	OriginalDescent  float64 `json:"original_descent_m"`
	CorrectedAscent  float64 `json:"corrected_ascent_m"`
	CorrectedDescent float64 `json:"corrected_descent_m"`

	// Filled only when segments are corrected independently
	PerSegment []Stats `json:"per_segment,omitempty"`
}

// Result carries every intermediate sequence of a run, index-aligned
type Result struct {
	Original  []float64
	Gradients []float64
	Sanitized []float64
	Corrected []float64
	Outliers  []int // indices into Gradients that were zeroed
	Stats     Stats
}
