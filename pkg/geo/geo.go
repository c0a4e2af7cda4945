// Package geo maps geographic coordinates onto the globe and builds the
// raised arcs drawn between them.
package geo

import "math"

const (
	// GlobeRadius is the radius of the rendered sphere in scene units.
	GlobeRadius = 100.0
	// MarkerRadius sits markers slightly above the surface so they are not
	// swallowed by the globe mesh.
	MarkerRadius = 101.0
	// PathSegments is the number of segments sampled along an arc; paths
	// carry PathSegments+1 points.
	PathSegments = 50
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Len() }

func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// Normalize returns the unit vector in the direction of v. The zero vector
// is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Location is a latitude/longitude pair in degrees.
type Location struct {
	Lat, Lng float64
}

// Project maps a latitude/longitude onto a sphere of the given radius. Input
// outside [-90,90]/[-180,180] is not validated; it lands wherever the
// trigonometry puts it.
func Project(lat, lng, radius float64) Vec3 {
	phi := (90 - lat) * math.Pi / 180
	theta := (lng + 180) * math.Pi / 180
	return Vec3{
		X: -radius * math.Sin(phi) * math.Cos(theta),
		Y: radius * math.Cos(phi),
		Z: radius * math.Sin(phi) * math.Sin(theta),
	}
}

// BuildPath samples a quadratic Bézier between start and end whose control
// point is the chord midpoint pushed outward to distance*0.75 + GlobeRadius,
// so longer arcs rise higher above the surface.
func BuildPath(start, end Vec3) []Vec3 {
	distance := start.Distance(end)
	ctrl := start.Lerp(end, 0.5).Normalize().Scale(distance*0.75 + GlobeRadius)

	points := make([]Vec3, PathSegments+1)
	for i := 0; i <= PathSegments; i++ {
		t := float64(i) / PathSegments
		u := 1 - t
		points[i] = start.Scale(u * u).Add(ctrl.Scale(2 * u * t)).Add(end.Scale(t * t))
	}
	return points
}

// Rotate applies the globe container rotation: yaw about the Y axis followed
// by pitch about the X axis.
func Rotate(v Vec3, yaw, pitch float64) Vec3 {
	sy, cy := math.Sincos(yaw)
	x := v.X*cy + v.Z*sy
	z := -v.X*sy + v.Z*cy

	sp, cp := math.Sincos(pitch)
	y := v.Y*cp - z*sp
	z = v.Y*sp + z*cp
	return Vec3{X: x, Y: y, Z: z}
}
