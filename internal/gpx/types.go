package gpx

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"
)

// gpxNamespace prefixes the GPX 1.0 and 1.1 schema namespaces
const gpxNamespace = "http://www.topografix.com/GPX/"

// RawXML preserves nested extension blocks without re-parsing them.
// We store the inner XML bytes verbatim so we can round-trip extensions
// emitted by other tools (Garmin, Strava, etc.).
type RawXML []byte

func (r RawXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(r) == 0 {
		return nil
	}

	type inner struct {
		Content string `xml:",innerxml"`
	}

	return e.EncodeElement(inner{Content: string(r)}, start)
}

func (r *RawXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type inner struct {
		Content string `xml:",innerxml"`
	}

	var data inner
	if err := d.DecodeElement(&data, &start); err != nil {
		return err
	}

	if len(data.Content) == 0 {
		*r = nil
		return nil
	}

	*r = append((*r)[:0], data.Content...)
	return nil
}

// RawElement keeps a child element the model does not name (<sat>, <hdop>,
// <link>, <bounds>, ...) with its attributes and inner XML as read.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

func (r RawElement) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = r.XMLName
	// elements of the document namespace are written unqualified, like their
	// named siblings
	if strings.HasPrefix(start.Name.Space, gpxNamespace) {
		start.Name.Space = ""
	}
	start.Attr = r.Attrs

	type inner struct {
		Content string `xml:",innerxml"`
	}

	return e.EncodeElement(inner{Content: r.Inner}, start)
}

// Meters is an elevation value. It is written in plain decimal notation
// since xsd:decimal has no exponent form.
type Meters float64

func (m Meters) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(strconv.FormatFloat(float64(m), 'f', -1, 64), start)
}

// Point represents a GPS track point. Elevation is a pointer so a missing
// <ele> can be told apart from sea level.
type Point struct {
	Lat       float64    `xml:"lat,attr"`
	Lon       float64    `xml:"lon,attr"`
	Elevation *Meters    `xml:"ele,omitempty"`
	Time      *time.Time `xml:"time,omitempty"`

	// Remaining GPX fields in document order
	Extra []RawElement `xml:",any"`

	// Extensions (Garmin, Strava, etc.) - preserve as raw XML
	Extensions RawXML `xml:"extensions,omitempty"`
}

// Ele returns the elevation or 0 when the point has none
func (p Point) Ele() float64 {
	if p.Elevation == nil {
		return 0
	}
	return float64(*p.Elevation)
}

// Track represents a GPX track with segments. Fields other than the name
// (cmt, desc, src, link, number, type) are carried in Extra.
type Track struct {
	Name       string         `xml:"name,omitempty"`
	Extra      []RawElement   `xml:",any"`
	Extensions RawXML         `xml:"extensions,omitempty"`
	Segments   []TrackSegment `xml:"trkseg"`
}

// TrackSegment represents a track segment
type TrackSegment struct {
	Points     []Point `xml:"trkpt"`
	Extensions RawXML  `xml:"extensions,omitempty"`
}

// Waypoint keeps a <wpt> verbatim; elevation correction never touches it
type Waypoint struct {
	Lat   float64 `xml:"lat,attr"`
	Lon   float64 `xml:"lon,attr"`
	Inner string  `xml:",innerxml"`
}

// Route keeps a <rte> verbatim
type Route struct {
	Inner string `xml:",innerxml"`
}

// GPX represents the full GPX file structure
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`

	// Namespaces - preserve all original namespaces
	XMLNS    string `xml:"xmlns,attr,omitempty"`
	XMLNSXSI string `xml:"xmlns:xsi,attr,omitempty"`
	XSI      string `xml:"xsi:schemaLocation,attr,omitempty"`

	// Garmin/Strava specific namespaces
	XMLNSGPXTPX string `xml:"xmlns:gpxtpx,attr,omitempty"`
	XMLNSGPXX   string `xml:"xmlns:gpxx,attr,omitempty"`

	// Any other prefix declarations, written back as-is
	Namespaces []xml.Attr `xml:",any,attr"`

	Metadata   *Metadata  `xml:"metadata,omitempty"`
	Waypoints  []Waypoint `xml:"wpt"`
	Routes     []Route    `xml:"rte"`
	Tracks     []Track    `xml:"trk"`
	Extensions RawXML     `xml:"extensions,omitempty"`
}

// UnmarshalXML keeps the root namespace declarations. encoding/xml resolves
// xmlns:* attributes instead of matching them to fields, which would leave
// extension prefixes undeclared on write.
func (g *GPX) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain GPX
	var p plain
	if err := d.DecodeElement(&p, &start); err != nil {
		return err
	}

	*g = GPX(p)
	// drop the resolved namespace so it is not written twice
	g.XMLName = xml.Name{Local: start.Name.Local}
	g.Namespaces = nil

	for _, attr := range start.Attr {
		switch {
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			g.XMLNS = attr.Value
		case attr.Name.Space == "xmlns":
			switch attr.Name.Local {
			case "xsi":
				g.XMLNSXSI = attr.Value
			case "gpxtpx":
				g.XMLNSGPXTPX = attr.Value
			case "gpxx":
				g.XMLNSGPXX = attr.Value
			default:
				g.Namespaces = append(g.Namespaces, xml.Attr{
					Name:  xml.Name{Local: "xmlns:" + attr.Name.Local},
					Value: attr.Value,
				})
			}
		case attr.Name.Local == "schemaLocation":
			g.XSI = attr.Value
		}
	}

	return nil
}

// Metadata represents GPX metadata. Everything after the name is kept
// verbatim in document order.
type Metadata struct {
	Name       string       `xml:"name,omitempty"`
	Extra      []RawElement `xml:",any"`
	Extensions RawXML       `xml:"extensions,omitempty"`
}

// TrackStats summarizes a parsed file
type TrackStats struct {
	Points   int           `json:"points"`
	Tracks   int           `json:"tracks"`
	Segments int           `json:"segments"`
	Duration time.Duration `json:"duration_ns"`
	Distance float64       `json:"distance_km"`

	MinElevation float64 `json:"min_elevation_m"`
	MaxElevation float64 `json:"max_elevation_m"`
}
