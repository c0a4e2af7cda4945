// Package globe hosts the playback core in an ebiten window: a 3D scene of
// arcs over a rotating globe, the histogram panel and the input handling
// that feeds both.
package globe

import (
	"image/color"
	"log"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/sudorandom/wirv/pkg/arcs"
	"github.com/sudorandom/wirv/pkg/geo"
)

var (
	ColorBackground = color.RGBA{8, 10, 15, 255}
	ColorSphere     = color.RGBA{16, 20, 28, 255}
	ColorLimb       = color.RGBA{36, 42, 53, 255}
	ColorCoastline  = color.RGBA{58, 68, 86, 255}
)

const markerSize = 2.5

type objectKind int

const (
	kindPath objectKind = iota
	kindMarker
)

type object struct {
	kind   objectKind
	points []geo.Vec3
	style  arcs.PathStyle
	color  color.RGBA
	pos    geo.Vec3
}

// Scene is an arena of drawable objects addressed by handle. Every object
// hangs off one container whose rotation is set once per frame.
type Scene struct {
	objects map[arcs.Handle]object
	next    arcs.Handle

	yaw, pitch    float64
	width, height int

	coastline [][]geo.Vec3
}

func NewScene(width, height int) *Scene {
	return &Scene{
		objects: make(map[arcs.Handle]object),
		width:   width,
		height:  height,
	}
}

func (s *Scene) alloc(o object) arcs.Handle {
	s.next++
	s.objects[s.next] = o
	return s.next
}

func (s *Scene) CreatePath(points []geo.Vec3, style arcs.PathStyle) arcs.Handle {
	return s.alloc(object{kind: kindPath, points: points, style: style})
}

func (s *Scene) CreateMarker(c color.RGBA, pos geo.Vec3) arcs.Handle {
	return s.alloc(object{kind: kindMarker, color: c, pos: pos})
}

// Destroy releases h. Unknown handles are logged and ignored.
func (s *Scene) Destroy(h arcs.Handle) {
	if _, ok := s.objects[h]; !ok {
		log.Printf("[SCENE] Destroy of unknown handle %d", h)
		return
	}
	delete(s.objects, h)
}

func (s *Scene) Len() int { return len(s.objects) }

func (s *Scene) SetContainerRotation(yaw, pitch float64) {
	s.yaw, s.pitch = yaw, pitch
}

func (s *Scene) ResizeViewport(width, height int) {
	s.width, s.height = width, height
}

// SetCoastline replaces the land outlines drawn on the sphere.
func (s *Scene) SetCoastline(rings [][]geo.Vec3) { s.coastline = rings }

// viewport is the area above the histogram panel the globe is centred in.
func (s *Scene) viewport() (cx, cy, scale float64) {
	h := float64(s.height) - panelHeight
	if h < 1 {
		h = 1
	}
	cx, cy = float64(s.width)/2, h/2
	scale = math.Min(float64(s.width), h) * 0.42 / geo.GlobeRadius
	return cx, cy, scale
}

// Project maps a scene point to screen coordinates. visible is false when
// the point is hidden behind the sphere.
func (s *Scene) Project(v geo.Vec3) (x, y float64, visible bool) {
	r := geo.Rotate(v, s.yaw, s.pitch)
	cx, cy, scale := s.viewport()
	x = cx + r.X*scale
	y = cy - r.Y*scale
	visible = r.Z >= 0 || math.Hypot(r.X, r.Y) > geo.GlobeRadius
	return x, y, visible
}

func (s *Scene) Draw(screen *ebiten.Image) {
	cx, cy, scale := s.viewport()
	radius := float32(geo.GlobeRadius * scale)
	vector.DrawFilledCircle(screen, float32(cx), float32(cy), radius, ColorSphere, true)
	vector.StrokeCircle(screen, float32(cx), float32(cy), radius, 1, ColorLimb, true)

	for _, ring := range s.coastline {
		s.drawPolyline(screen, ring, 1, ColorCoastline)
	}

	// Paths first so markers sit on top of them.
	for _, o := range s.objects {
		if o.kind == kindPath {
			s.drawPolyline(screen, o.points, float32(o.style.Width), o.style.Color)
		}
	}
	for _, o := range s.objects {
		if o.kind != kindMarker {
			continue
		}
		if x, y, ok := s.Project(o.pos); ok {
			vector.DrawFilledCircle(screen, float32(x), float32(y), markerSize, o.color, true)
		}
	}
}

func (s *Scene) drawPolyline(screen *ebiten.Image, points []geo.Vec3, width float32, c color.RGBA) {
	if len(points) < 2 {
		return
	}
	px, py, pvis := s.Project(points[0])
	for _, p := range points[1:] {
		x, y, vis := s.Project(p)
		if vis && pvis {
			vector.StrokeLine(screen, float32(px), float32(py), float32(x), float32(y), width, c, true)
		}
		px, py, pvis = x, y, vis
	}
}
