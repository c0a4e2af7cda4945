package geo

import (
	"math"
	"testing"
)

func near(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestProject(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     Vec3
	}{
		{0, 0, Vec3{100, 0, 0}},
		{90, 0, Vec3{0, 100, 0}},
		{-90, 0, Vec3{0, -100, 0}},
		{0, 90, Vec3{0, 0, -100}},
		{0, -90, Vec3{0, 0, 100}},
		{0, 180, Vec3{-100, 0, 0}},
	}

	for _, tt := range tests {
		got := Project(tt.lat, tt.lng, GlobeRadius)
		if !near(got, tt.want, 1e-9) {
			t.Errorf("Project(%f, %f) = %+v; want %+v", tt.lat, tt.lng, got, tt.want)
		}
		if r := got.Len(); math.Abs(r-GlobeRadius) > 1e-9 {
			t.Errorf("Project(%f, %f) radius = %f; want %f", tt.lat, tt.lng, r, GlobeRadius)
		}
	}
}

func TestProjectOutOfRangeDoesNotPanic(t *testing.T) {
	v := Project(500, -1000, GlobeRadius)
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) {
		t.Errorf("Project out of range produced NaN: %+v", v)
	}
}

func TestBuildPath(t *testing.T) {
	start := Project(52.52, 13.405, GlobeRadius)
	end := Project(37.7749, -122.4194, GlobeRadius)

	path := BuildPath(start, end)
	if len(path) != PathSegments+1 {
		t.Fatalf("len(path) = %d; want %d", len(path), PathSegments+1)
	}
	if !near(path[0], start, 1e-9) || !near(path[len(path)-1], end, 1e-9) {
		t.Errorf("path endpoints = %+v..%+v; want %+v..%+v", path[0], path[len(path)-1], start, end)
	}

	mid := path[PathSegments/2]
	if mid.Len() <= GlobeRadius {
		t.Errorf("arc midpoint radius = %f; want above the surface (%f)", mid.Len(), GlobeRadius)
	}

	again := BuildPath(start, end)
	for i := range path {
		if path[i] != again[i] {
			t.Fatalf("BuildPath is not deterministic at %d: %+v vs %+v", i, path[i], again[i])
		}
	}
}

func TestBuildPathLongerArcsRiseHigher(t *testing.T) {
	origin := Project(0, 0, GlobeRadius)
	short := BuildPath(origin, Project(0, 10, GlobeRadius))
	long := BuildPath(origin, Project(0, 120, GlobeRadius))

	if long[PathSegments/2].Len() <= short[PathSegments/2].Len() {
		t.Errorf("long arc apex %f should exceed short arc apex %f",
			long[PathSegments/2].Len(), short[PathSegments/2].Len())
	}
}

func TestRotate(t *testing.T) {
	v := Vec3{1, 0, 0}
	got := Rotate(v, math.Pi/2, 0)
	if !near(got, Vec3{0, 0, -1}, 1e-9) {
		t.Errorf("Rotate yaw 90 = %+v; want {0 0 -1}", got)
	}

	got = Rotate(Vec3{0, 0, 1}, 0, math.Pi/2)
	if !near(got, Vec3{0, -1, 0}, 1e-9) {
		t.Errorf("Rotate pitch 90 = %+v; want {0 -1 0}", got)
	}
}
