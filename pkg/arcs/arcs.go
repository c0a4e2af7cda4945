// Package arcs owns the transient arcs drawn for each replayed request. It
// creates them through a Renderer, expires them by age and clears them in
// bulk when playback is re-scoped.
package arcs

import (
	"fmt"
	"image/color"
	"log"
	"time"

	"github.com/sudorandom/wirv/pkg/geo"
	"github.com/sudorandom/wirv/pkg/reqlog"
)

// DefaultTTL is how long an arc stays on the globe after it is created.
const DefaultTTL = 2000 * time.Millisecond

var (
	ColorNormal     = color.RGBA{0x80, 0x80, 0x80, 0xff}
	ColorSuspicious = color.RGBA{0xff, 0x00, 0x00, 0xff}
	ColorClient     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	ColorServer     = color.RGBA{0xff, 0xff, 0x00, 0xff}
)

const (
	widthNormal     = 1.0
	widthSuspicious = 2.5
)

// Handle is an opaque reference to a renderer-side object.
type Handle uint64

type PathStyle struct {
	Color color.RGBA
	Width float64
}

// Renderer creates and destroys the scene objects backing each arc. The
// manager never inspects what a Handle refers to.
type Renderer interface {
	CreatePath(points []geo.Vec3, style PathStyle) Handle
	CreateMarker(c color.RGBA, pos geo.Vec3) Handle
	Destroy(h Handle)
}

type ArtifactID = int64

// DuplicateArtifactError is returned by Add when an arc for the same event
// is still on the globe.
type DuplicateArtifactError struct {
	ID ArtifactID
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("arc for event %d already exists", e.ID)
}

type artifact struct {
	createdAt time.Time
	path      Handle
	client    Handle
}

type Manager struct {
	renderer      Renderer
	defaultServer geo.Location
	now           func() time.Time

	artifacts map[ArtifactID]artifact
	server    Handle
	hasServer bool
}

type Option func(*Manager)

// WithDefaultServer sets the location arcs terminate at when an event has no
// server coordinates.
func WithDefaultServer(loc geo.Location) Option {
	return func(m *Manager) { m.defaultServer = loc }
}

// WithClock overrides the wall clock used to stamp new arcs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(r Renderer, opts ...Option) *Manager {
	m := &Manager{
		renderer:      r,
		defaultServer: reqlog.DefaultServer,
		now:           time.Now,
		artifacts:     make(map[ArtifactID]artifact),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Add(ev reqlog.LogEvent) (ArtifactID, error) {
	if _, ok := m.artifacts[ev.ID]; ok {
		return ev.ID, &DuplicateArtifactError{ID: ev.ID}
	}

	client := ev.Client()
	server := ev.Server(m.defaultServer)
	start := geo.Project(client.Lat, client.Lng, geo.GlobeRadius)
	end := geo.Project(server.Lat, server.Lng, geo.GlobeRadius)

	style := PathStyle{Color: ColorNormal, Width: widthNormal}
	if ev.Suspicious() {
		style = PathStyle{Color: ColorSuspicious, Width: widthSuspicious}
	}

	a := artifact{
		createdAt: m.now(),
		path:      m.renderer.CreatePath(geo.BuildPath(start, end), style),
		client:    m.renderer.CreateMarker(ColorClient, geo.Project(client.Lat, client.Lng, geo.MarkerRadius)),
	}

	if !m.hasServer {
		m.server = m.renderer.CreateMarker(ColorServer, geo.Project(server.Lat, server.Lng, geo.MarkerRadius))
		m.hasServer = true
	}

	m.artifacts[ev.ID] = a
	return ev.ID, nil
}

// ExpireOlderThan removes every arc whose age at now is strictly greater
// than ttl and returns how many were removed. The server marker is never
// expired.
func (m *Manager) ExpireOlderThan(now time.Time, ttl time.Duration) int {
	removed := 0
	for id, a := range m.artifacts {
		if now.Sub(a.createdAt) > ttl {
			m.destroy(a)
			delete(m.artifacts, id)
			removed++
		}
	}
	return removed
}

// Clear removes every arc and the server marker.
func (m *Manager) Clear() {
	if n := len(m.artifacts); n > 0 {
		log.Printf("[ARCS] Clearing %d active arcs", n)
	}
	for id, a := range m.artifacts {
		m.destroy(a)
		delete(m.artifacts, id)
	}
	if m.hasServer {
		m.renderer.Destroy(m.server)
		m.hasServer = false
	}
}

func (m *Manager) destroy(a artifact) {
	m.renderer.Destroy(a.path)
	m.renderer.Destroy(a.client)
}

func (m *Manager) Len() int { return len(m.artifacts) }

func (m *Manager) Has(id ArtifactID) bool {
	_, ok := m.artifacts[id]
	return ok
}

// HasServerMarker reports whether the shared server marker is on the globe.
func (m *Manager) HasServerMarker() bool { return m.hasServer }
