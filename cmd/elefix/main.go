package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/planbiir/elefix/internal/config"
	"github.com/planbiir/elefix/internal/elevation"
	"github.com/planbiir/elefix/internal/fix"
)

func main() {
	var (
		inputFile  = flag.String("i", "", "Input GPX file (more files may follow as arguments)")
		outputFile = flag.String("o", "", "Output GPX file (default: <input>_updated.gpx)")
		configFile = flag.String("config", "", "YAML config file")
		stdFactor  = flag.Float64("std-factor", elevation.DefaultStdFactor, "Gradients beyond this many standard deviations are zeroed")
		perSegment = flag.Bool("per-segment", false, "Compute statistics per track segment instead of pooling all points")
		suffix     = flag.String("suffix", "", "Suffix inserted before the extension of output files (default: _updated)")
		plotDir    = flag.String("plot", "", "Directory for before/after elevation charts")
		workers    = flag.Int("workers", 0, "Files corrected in parallel (default: number of CPUs)")
		dryRun     = flag.Bool("dry-run", false, "Show statistics without writing output file")
		showStats  = flag.Bool("stats", false, "Show detailed statistics")
		statsJSON  = flag.Bool("stats-json", false, "Output statistics as JSON")
		verbose    = flag.Bool("v", false, "Debug logging to stderr")
		version    = flag.Bool("version", false, "Show version information")
	)

	flag.Usage = func() {
		fmt.Printf("elefix - Remove elevation spikes from GPX tracks\n\n")
		fmt.Printf("usage: elefix [options] -i /path/to/file.gpx\n")
		fmt.Printf("       elefix [options] file1.gpx file2.gpx ...\n\n")
		fmt.Printf("examples:\n")
		fmt.Printf("  elefix -i canada-park.gpx\n")
		fmt.Printf("  elefix -std-factor 3.5 -plot plots/ day1.gpx day2.gpx\n")
		fmt.Printf("  ELEFIX_PER_SEGMENT=true elefix -i \"My Activity.gpx\"\n\n")
		fmt.Printf("options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		fmt.Println("elefix v1.0.0 - GPX elevation cleaner")
		os.Exit(0)
	}

	inputs := flag.Args()
	if *inputFile != "" {
		inputs = append([]string{*inputFile}, inputs...)
	}
	if len(inputs) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *outputFile != "" && len(inputs) > 1 {
		fmt.Fprintf(os.Stderr, "Error: -o can only be used with a single input file\n")
		os.Exit(2)
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(2)
	}

	// Explicit flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "std-factor":
			cfg.StdFactor = *stdFactor
		case "per-segment":
			cfg.PerSegment = *perSegment
		case "suffix":
			cfg.Suffix = *suffix
		case "plot":
			cfg.PlotDir = *plotDir
		case "workers":
			cfg.Workers = *workers
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.DiscardHandler)
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if cfg.PlotDir != "" {
		if err := os.MkdirAll(cfg.PlotDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating plot directory: %v\n", err)
			os.Exit(1)
		}
	}

	opts := fix.Options{
		Config:  cfg.Elevation(),
		Output:  *outputFile,
		Suffix:  cfg.Suffix,
		PlotDir: cfg.PlotDir,
		DryRun:  *dryRun,
		Workers: cfg.Workers,
		Logger:  logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for _, input := range inputs {
		fmt.Printf("📖 Reading GPX file: %s\n", input)
	}
	fmt.Printf("🔬 Zeroing gradients beyond %.2f σ (%s)...\n", cfg.StdFactor, poolingMode(cfg.PerSegment))

	reports, err := fix.Files(ctx, inputs, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	if *showStats || *statsJSON || *dryRun {
		if *statsJSON {
			jsonData, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling stats: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(jsonData))
		} else {
			for _, report := range reports {
				printStats(report)
			}
		}
	}

	if *dryRun {
		fmt.Printf("🔍 Dry run completed - no files written\n")
		os.Exit(0)
	}

	for _, report := range reports {
		fmt.Printf("💾 Wrote corrected track: %s\n", report.Output)
		fmt.Printf("   %d of %d gradients zeroed (%.1f%%), ascent %.0f → %.0f m\n",
			report.Elevation.Sanitized, report.Elevation.Gradients, report.Elevation.SanitizedPercent,
			report.Elevation.OriginalAscent, report.Elevation.CorrectedAscent)
		if report.Chart != "" {
			fmt.Printf("   chart: %s\n", report.Chart)
		}
	}
	fmt.Printf("✅ Elevation cleaned successfully!\n")
}

func poolingMode(perSegment bool) string {
	if perSegment {
		return "per segment"
	}
	return "all segments pooled"
}

func printStats(report fix.Report) {
	s := report.Elevation
	fmt.Printf("\n📊 Elevation Statistics: %s\n", report.Input)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("📍 Points: %d in %d tracks / %d segments\n",
		report.Track.Points, report.Track.Tracks, report.Track.Segments)
	fmt.Printf("📏 Distance: %.2f km, elevation %.0f – %.0f m\n",
		report.Track.Distance, report.Track.MinElevation, report.Track.MaxElevation)
	if len(s.PerSegment) == 0 {
		fmt.Printf("📐 Gradient σ: %.2f m, threshold: %.2f m (%.2f σ)\n", s.StdDev, s.Threshold, s.StdFactor)
	} else {
		for i, seg := range s.PerSegment {
			fmt.Printf("📐 Segment %d: σ %.2f m, threshold %.2f m, %d zeroed\n", i+1, seg.StdDev, seg.Threshold, seg.Sanitized)
		}
	}
	fmt.Printf("✂️  Zeroed: %d of %d gradients (%.1f%%), largest step %.1f m\n",
		s.Sanitized, s.Gradients, s.SanitizedPercent, s.MaxAbsGradient)
	fmt.Printf("⛰️  Ascent: %.0f → %.0f m, descent: %.0f → %.0f m\n",
		s.OriginalAscent, s.CorrectedAscent, s.OriginalDescent, s.CorrectedDescent)
	fmt.Printf("⏱️  Processing Time: %v\n", report.ProcessingTime)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
}
