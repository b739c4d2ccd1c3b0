// Package chart renders before/after comparisons of a correction run. It is
// a debugging aid and plays no part in the correction itself.
package chart

import (
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Series holds the sequences to compare
type Series struct {
	Title              string
	Gradients          []float64
	SanitizedGradients []float64
	Elevations         []float64
	CorrectedElevation []float64
}

const (
	width  = 14 * vg.Inch
	height = 10 * vg.Inch
)

// SaveComparison writes a PNG with the slope on top and the elevation
// profile below, each showing original and corrected values.
func SaveComparison(path string, s Series) error {
	if len(s.Elevations) == 0 {
		return fmt.Errorf("nothing to plot")
	}

	slope, err := linePlot("Slope", "Gradient (m)",
		line{"Original", s.Gradients}, line{"Sanitized", s.SanitizedGradients})
	if err != nil {
		return err
	}
	if s.Title != "" {
		slope.Title.Text = s.Title + " - Slope"
	}

	profile, err := linePlot("Elevation", "Elevation (m)",
		line{"Original", s.Elevations}, line{"Corrected", s.CorrectedElevation})
	if err != nil {
		return err
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      8 * vg.Millimeter,
		PadTop:    vg.Millimeter,
		PadBottom: vg.Millimeter,
		PadLeft:   vg.Millimeter,
		PadRight:  vg.Millimeter,
	}

	plots := [][]*plot.Plot{{slope}, {profile}}
	canvases := plot.Align(plots, tiles, dc)
	for row := range plots {
		plots[row][0].Draw(canvases[row][0])
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return file.Close()
}

type line struct {
	name   string
	values []float64
}

// linePlot builds a plot with one line per non-empty series, x being the
// sample index.
func linePlot(title, yLabel string, lines ...line) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Point"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	args := make([]any, 0, 2*len(lines))
	for _, l := range lines {
		if len(l.values) == 0 {
			continue
		}
		args = append(args, l.name, indexed(l.values))
	}

	if err := plotutil.AddLines(p, args...); err != nil {
		return nil, fmt.Errorf("failed to add %s lines: %w", title, err)
	}
	return p, nil
}

func indexed(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}
