package globe

import (
	"fmt"
	"io"
	"os"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"github.com/sudorandom/wirv/pkg/geo"
	"github.com/sudorandom/wirv/pkg/utils"
)

// coastlineStep keeps every nth vertex of a ring; world outlines are far
// denser than the globe is ever drawn.
const coastlineStep = 3

// LoadCoastline reads a GeoJSON feature collection from a local path or an
// http(s) URL (downloaded once into the cache).
func LoadCoastline(src string) ([][]geo.Vec3, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		r, err = utils.Open(src, true, "[COASTLINE]")
	} else {
		r, err = os.Open(src)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read coastline: %w", err)
	}
	return ParseCoastline(data)
}

// ParseCoastline projects every polygon ring in a feature collection onto
// the globe surface.
func ParseCoastline(data []byte) ([][]geo.Vec3, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse coastline: %w", err)
	}
	var rings [][]geo.Vec3
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		switch {
		case f.Geometry.IsPolygon():
			rings = appendRings(rings, f.Geometry.Polygon)
		case f.Geometry.IsMultiPolygon():
			for _, poly := range f.Geometry.MultiPolygon {
				rings = appendRings(rings, poly)
			}
		case f.Geometry.IsLineString():
			rings = appendRings(rings, [][][]float64{f.Geometry.LineString})
		}
	}
	return rings, nil
}

func appendRings(out [][]geo.Vec3, rings [][][]float64) [][]geo.Vec3 {
	for _, ring := range rings {
		if len(ring) < 2 {
			continue
		}
		pts := make([]geo.Vec3, 0, len(ring)/coastlineStep+2)
		for i := 0; i < len(ring); i += coastlineStep {
			pts = append(pts, project(ring[i]))
		}
		// Always close on the final vertex.
		if (len(ring)-1)%coastlineStep != 0 {
			pts = append(pts, project(ring[len(ring)-1]))
		}
		out = append(out, pts)
	}
	return out
}

// project takes a GeoJSON [lng, lat] position.
func project(p []float64) geo.Vec3 {
	return geo.Project(p[1], p[0], geo.GlobeRadius)
}
