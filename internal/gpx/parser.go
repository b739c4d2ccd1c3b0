package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// ErrMalformedSource is returned when a file cannot be turned into a track
var ErrMalformedSource = errors.New("malformed GPX source")

// UpdatedSuffix is inserted before the extension of corrected files
const UpdatedSuffix = "_updated"

// Parse reads and parses a GPX file, preserving all extensions and namespaces
func Parse(filename string) (*GPX, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return ParseReader(file)
}

// ParseReader parses GPX from an io.Reader. Every track point must carry an
// elevation, otherwise the source is rejected as malformed.
func ParseReader(r io.Reader) (*GPX, error) {
	decoder := xml.NewDecoder(r)

	var gpxData GPX
	if err := decoder.Decode(&gpxData); err != nil {
		return nil, fmt.Errorf("%w: failed to parse GPX: %v", ErrMalformedSource, err)
	}

	// Set default namespaces if missing
	if gpxData.XMLNS == "" {
		gpxData.XMLNS = "http://www.topografix.com/GPX/1/1"
	}
	if gpxData.Version == "" {
		gpxData.Version = "1.1"
	}
	if gpxData.Creator == "" {
		gpxData.Creator = "elefix"
	}

	for trackIdx, track := range gpxData.Tracks {
		for segIdx, segment := range track.Segments {
			for ptIdx, point := range segment.Points {
				if point.Elevation == nil {
					return nil, fmt.Errorf("%w: track %d segment %d point %d has no elevation",
						ErrMalformedSource, trackIdx, segIdx, ptIdx)
				}
			}
		}
	}

	return &gpxData, nil
}

// Write saves GPX data to a file. Data goes to a temporary file in the same
// directory first and is renamed into place, so a failed write never leaves a
// truncated file behind.
func (g *GPX) Write(filename string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if err := g.WriteToWriter(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	return nil
}

// WriteToWriter writes GPX data to an io.Writer
func (g *GPX) WriteToWriter(w io.Writer) error {
	// Write XML header
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}

	return encoder.Close()
}

// FlattenPoints returns all points from all tracks and segments in order
func (g *GPX) FlattenPoints() []Point {
	var points []Point

	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			points = append(points, segment.Points...)
		}
	}

	return points
}

// Elevations returns the elevation of every track point in file order,
// pooled across tracks and segments.
func (g *GPX) Elevations() []float64 {
	var elevations []float64
	for _, point := range g.FlattenPoints() {
		elevations = append(elevations, point.Ele())
	}
	return elevations
}

// SegmentElevations returns one elevation slice per segment, in file order.
// Empty segments yield empty slices.
func (g *GPX) SegmentElevations() [][]float64 {
	var segments [][]float64
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			elevations := make([]float64, len(segment.Points))
			for i, point := range segment.Points {
				elevations[i] = point.Ele()
			}
			segments = append(segments, elevations)
		}
	}
	return segments
}

// WithElevations returns a deep copy of g whose track points carry the given
// elevations, assigned in the same order Elevations reports them.
// g itself is left untouched.
func (g *GPX) WithElevations(elevations []float64) (*GPX, error) {
	if pointCount := len(g.FlattenPoints()); pointCount != len(elevations) {
		return nil, fmt.Errorf("elevation count %d does not match point count %d", len(elevations), pointCount)
	}

	updated := g.Clone()
	idx := 0
	for trackIdx := range updated.Tracks {
		for segIdx := range updated.Tracks[trackIdx].Segments {
			points := updated.Tracks[trackIdx].Segments[segIdx].Points
			for ptIdx := range points {
				ele := Meters(elevations[idx])
				points[ptIdx].Elevation = &ele
				idx++
			}
		}
	}

	return updated, nil
}

// Clone copies the track hierarchy so that points can be changed without
// affecting the original. Raw XML blocks are shared since they are never
// modified.
func (g *GPX) Clone() *GPX {
	clone := *g
	if g.Metadata != nil {
		metadata := *g.Metadata
		metadata.Extra = append([]RawElement(nil), g.Metadata.Extra...)
		clone.Metadata = &metadata
	}
	clone.Namespaces = append([]xml.Attr(nil), g.Namespaces...)
	clone.Waypoints = append([]Waypoint(nil), g.Waypoints...)
	clone.Routes = append([]Route(nil), g.Routes...)

	clone.Tracks = make([]Track, len(g.Tracks))
	for trackIdx, track := range g.Tracks {
		clone.Tracks[trackIdx] = track
		clone.Tracks[trackIdx].Extra = append([]RawElement(nil), track.Extra...)
		clone.Tracks[trackIdx].Segments = make([]TrackSegment, len(track.Segments))
		for segIdx, segment := range track.Segments {
			points := make([]Point, len(segment.Points))
			for ptIdx, point := range segment.Points {
				if point.Elevation != nil {
					ele := *point.Elevation
					point.Elevation = &ele
				}
				point.Extra = append([]RawElement(nil), point.Extra...)
				points[ptIdx] = point
			}
			clone.Tracks[trackIdx].Segments[segIdx] = TrackSegment{
				Points:     points,
				Extensions: segment.Extensions,
			}
		}
	}

	return &clone
}

// Stats returns basic statistics about the GPX data
func (g *GPX) Stats() TrackStats {
	points := g.FlattenPoints()
	stats := TrackStats{
		Points: len(points),
		Tracks: len(g.Tracks),
	}

	for _, track := range g.Tracks {
		stats.Segments += len(track.Segments)
	}

	if len(points) == 0 {
		return stats
	}

	stats.MinElevation = math.Inf(1)
	stats.MaxElevation = math.Inf(-1)
	for _, point := range points {
		stats.MinElevation = math.Min(stats.MinElevation, point.Ele())
		stats.MaxElevation = math.Max(stats.MaxElevation, point.Ele())
	}

	first, last := points[0], points[len(points)-1]
	if first.Time != nil && last.Time != nil {
		stats.Duration = last.Time.Sub(*first.Time)
	}
	for i := 1; i < len(points); i++ {
		stats.Distance += basicDistance(points[i-1], points[i])
	}

	return stats
}

// UpdatedPath derives the output path for a corrected file:
// "dir/canada-park.gpx" -> "dir/canada-park_updated.gpx".
func UpdatedPath(filename string) string {
	return UpdatedPathWithSuffix(filename, UpdatedSuffix)
}

// UpdatedPathWithSuffix is UpdatedPath with a custom suffix
func UpdatedPathWithSuffix(filename, suffix string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	return base + suffix + ext
}

// basicDistance calculates rough distance between two points (km)
func basicDistance(p1, p2 Point) float64 {
	const earthRadius = 6371.0 // km

	lat1Rad := p1.Lat * math.Pi / 180
	lat2Rad := p2.Lat * math.Pi / 180
	deltaLat := (p2.Lat - p1.Lat) * math.Pi / 180
	deltaLon := (p2.Lon - p1.Lon) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
