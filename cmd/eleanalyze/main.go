package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"github.com/planbiir/elefix/internal/elevation"
	"github.com/planbiir/elefix/internal/gpx"
)

func main() {
	cfg := elevation.DefaultConfig()

	fromFlag := flag.Float64("from", 1.5, "Smallest std factor to try")
	toFlag := flag.Float64("to", 5.0, "Largest std factor to try")
	stepFlag := flag.Float64("step", 0.5, "Std factor increment")
	topFlag := flag.Int("top", 10, "Number of largest gradients to list")
	perSegmentFlag := flag.Bool("per-segment", cfg.PerSegment, "Compute statistics per track segment")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		log.Fatalf("usage: %s [flags] <track.gpx>", os.Args[0])
	}
	if *stepFlag <= 0 || *fromFlag < 0 || *toFlag < *fromFlag {
		log.Fatalf("invalid sweep range: from=%v to=%v step=%v", *fromFlag, *toFlag, *stepFlag)
	}
	if *topFlag < 0 {
		log.Fatalf("invalid -top %d: must not be negative", *topFlag)
	}
	cfg.PerSegment = *perSegmentFlag

	path := args[0]
	track, err := gpx.Parse(path)
	if err != nil {
		log.Fatalf("parse track: %v", err)
	}

	stats := track.Stats()
	fmt.Printf("Track: %s\n", path)
	fmt.Printf("  points: %d in %d tracks / %d segments\n", stats.Points, stats.Tracks, stats.Segments)
	fmt.Printf("  distance: %.3f km, duration %v\n", stats.Distance, stats.Duration)
	fmt.Printf("  elevation: %.1f – %.1f m\n", stats.MinElevation, stats.MaxElevation)

	segments := track.SegmentElevations()
	rows, err := sweep(segments, cfg, factors(*fromFlag, *toFlag, *stepFlag))
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}

	fmt.Printf("\nSensitivity (%s):\n", mode(cfg.PerSegment))
	fmt.Printf("  %6s  %10s  %8s  %8s  %10s\n", "factor", "threshold", "zeroed", "percent", "ascent")
	for _, row := range rows {
		threshold := fmt.Sprintf("%.2f", row.Stats.Threshold)
		if cfg.PerSegment {
			threshold = "per-seg"
		}
		fmt.Printf("  %6.2f  %10s  %8d  %7.2f%%  %8.0f m\n",
			row.Factor, threshold, row.Stats.Sanitized, row.Stats.SanitizedPercent, row.Stats.CorrectedAscent)
	}

	result, err := elevation.CorrectSegments(segments, elevation.DefaultConfig())
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	fmt.Printf("\nLargest gradients (pooled σ %.2f m, original ascent %.0f m):\n",
		result.Stats.StdDev, result.Stats.OriginalAscent)
	for _, spike := range largestGradients(result.Gradients, *topFlag) {
		fmt.Printf("  point %6d → %6d: %+8.2f m (%.1f σ)\n",
			spike.Index, spike.Index+1, spike.Gradient, sigmas(spike.Gradient, result.Stats.StdDev))
	}
}

type sweepRow struct {
	Factor float64
	Stats  elevation.Stats
}

// sweep corrects the same track with every factor and keeps the stats
func sweep(segments [][]float64, cfg elevation.Config, factors []float64) ([]sweepRow, error) {
	rows := make([]sweepRow, 0, len(factors))
	for _, factor := range factors {
		cfg.StdFactor = factor
		result, err := elevation.CorrectSegments(segments, cfg)
		if err != nil {
			return nil, err
		}
		rows = append(rows, sweepRow{Factor: factor, Stats: result.Stats})
	}
	return rows, nil
}

func factors(from, to, step float64) []float64 {
	var out []float64
	// index-based to avoid drift from repeated addition
	for i := 0; ; i++ {
		f := from + float64(i)*step
		if f > to+step/1e6 {
			break
		}
		out = append(out, math.Round(f*1e6)/1e6)
	}
	return out
}

type gradientInfo struct {
	Index    int
	Gradient float64
}

func largestGradients(gradients []float64, n int) []gradientInfo {
	if n <= 0 {
		return nil
	}
	infos := make([]gradientInfo, len(gradients))
	for i, g := range gradients {
		infos[i] = gradientInfo{Index: i, Gradient: g}
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return math.Abs(infos[i].Gradient) > math.Abs(infos[j].Gradient)
	})
	if len(infos) > n {
		infos = infos[:n]
	}
	return infos
}

func sigmas(gradient, std float64) float64 {
	if std == 0 {
		return math.Inf(1)
	}
	return math.Abs(gradient) / std
}

func mode(perSegment bool) string {
	if perSegment {
		return "per segment"
	}
	return "pooled"
}
