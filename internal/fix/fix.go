package fix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/planbiir/elefix/internal/chart"
	"github.com/planbiir/elefix/internal/elevation"
	"github.com/planbiir/elefix/internal/gpx"
)

// ErrWriteFailure is returned when the corrected file cannot be written
var ErrWriteFailure = errors.New("failed to write corrected file")

// File-level stages; core stages are reported with their elevation.Stage name
const (
	StageLoad  = "load"
	StageApply = "apply"
	StageChart = "chart"
	StageSave  = "save"
)

// StageError reports which step of a file correction failed
type StageError struct {
	Stage string
	Input string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Input, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options controls a correction run
type Options struct {
	Config elevation.Config

	Output  string // explicit output path, single input only
	Suffix  string // inserted before the extension when Output is empty
	PlotDir string // write a comparison chart per input when set
	DryRun  bool   // correct but write nothing
	Workers int    // concurrent files for Files

	Logger *slog.Logger
}

// Report describes one corrected file
type Report struct {
	RunID          string          `json:"run_id"`
	Input          string          `json:"input"`
	Output         string          `json:"output,omitempty"`
	Chart          string          `json:"chart,omitempty"`
	DryRun         bool            `json:"dry_run"`
	Track          gpx.TrackStats  `json:"track"`
	Elevation      elevation.Stats `json:"elevation"`
	ProcessingTime time.Duration   `json:"processing_time_ns"`
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// OutputPath returns where the corrected copy of input is written
func (o Options) OutputPath(input string) string {
	if o.Output != "" {
		return o.Output
	}
	suffix := o.Suffix
	if suffix == "" {
		suffix = gpx.UpdatedSuffix
	}
	return gpx.UpdatedPathWithSuffix(input, suffix)
}

// ChartPath returns where the comparison chart for input is written, or ""
func (o Options) ChartPath(input string) string {
	if o.PlotDir == "" {
		return ""
	}
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(o.PlotDir, base+"_elevation.png")
}

// File loads one GPX file, corrects its elevations and writes the corrected
// copy. Any failure aborts the run before the output is written.
func File(ctx context.Context, input string, opts Options) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	startTime := time.Now()
	log := opts.logger().With(slog.String("input", input))
	report := Report{
		RunID:  uuid.NewString(),
		Input:  input,
		DryRun: opts.DryRun,
	}
	log = log.With(slog.String("run_id", report.RunID))

	track, err := gpx.Parse(input)
	if err != nil {
		return Report{}, &StageError{Stage: StageLoad, Input: input, Err: err}
	}
	report.Track = track.Stats()
	log.Debug("track loaded",
		slog.Int("points", report.Track.Points),
		slog.Int("tracks", report.Track.Tracks),
		slog.Int("segments", report.Track.Segments))

	result, err := elevation.CorrectSegments(track.SegmentElevations(), opts.Config)
	if err != nil {
		stage := "correct"
		var stageErr *elevation.StageError
		if errors.As(err, &stageErr) {
			stage, err = string(stageErr.Stage), stageErr.Err
		}
		return Report{}, &StageError{Stage: stage, Input: input, Err: err}
	}
	report.Elevation = result.Stats
	log.Debug("elevation corrected",
		slog.Float64("std", result.Stats.StdDev),
		slog.Float64("threshold", result.Stats.Threshold),
		slog.Int("sanitized", result.Stats.Sanitized),
		slog.Any("outliers", result.Outliers))

	updated, err := track.WithElevations(result.Corrected)
	if err != nil {
		return Report{}, &StageError{Stage: StageApply, Input: input, Err: err}
	}

	if chartPath := opts.ChartPath(input); chartPath != "" {
		err := chart.SaveComparison(chartPath, chart.Series{
			Title:              filepath.Base(input),
			Gradients:          result.Gradients,
			SanitizedGradients: result.Sanitized,
			Elevations:         result.Original,
			CorrectedElevation: result.Corrected,
		})
		if err != nil {
			return Report{}, &StageError{Stage: StageChart, Input: input, Err: err}
		}
		report.Chart = chartPath
		log.Debug("chart written", slog.String("chart", chartPath))
	}

	if !opts.DryRun {
		output := opts.OutputPath(input)
		if sameFile(input, output) {
			return Report{}, &StageError{Stage: StageSave, Input: input,
				Err: fmt.Errorf("%w: output would overwrite the input", ErrWriteFailure)}
		}
		if err := updated.Write(output); err != nil {
			return Report{}, &StageError{Stage: StageSave, Input: input,
				Err: fmt.Errorf("%w: %v", ErrWriteFailure, err)}
		}
		report.Output = output
		log.Debug("corrected track written", slog.String("output", output))
	}

	report.ProcessingTime = time.Since(startTime)
	return report, nil
}

// Files corrects several files concurrently. Each file is independent; the
// first failure cancels files that have not started yet. Reports are
// returned in input order, zero-valued for files that did not complete.
func Files(ctx context.Context, inputs []string, opts Options) ([]Report, error) {
	if opts.Output != "" && len(inputs) > 1 {
		return nil, fmt.Errorf("an explicit output path needs exactly one input, got %d", len(inputs))
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	reports := make([]Report, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, input := range inputs {
		g.Go(func() error {
			report, err := File(ctx, input, opts)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}

	return reports, g.Wait()
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
