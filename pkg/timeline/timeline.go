// Package timeline drives the request histogram under the globe: it owns the
// time/pixel scales, turns brush gestures into time ranges and places the
// current-time indicator.
package timeline

import (
	"log"
	"time"

	"github.com/sudorandom/wirv/pkg/reqlog"
)

type Margin struct {
	Top, Right, Bottom, Left float64
}

// DefaultMargin and DefaultHeight give a 60px tall plotting area.
var DefaultMargin = Margin{Top: 20, Right: 20, Bottom: 20, Left: 40}

const DefaultHeight = 100.0

// Extent is the pixel rectangle a brush may be dragged in.
type Extent struct {
	X0, Y0, X1, Y1 float64
}

// Chart draws the histogram. It is told what to draw and reports completed
// brush gestures back through the callback given to AttachBrush.
type Chart interface {
	DrawHistogram(buckets []reqlog.TimeBucket, ts TimeScale, cs CountScale)
	AttachBrush(extent Extent, onComplete func(x0, x1 float64))
	PositionIndicator(x float64, visible bool)
}

// Container reports the current outer width of the element hosting the
// chart.
type Container interface {
	Width() float64
}

type SelectedRange struct {
	From, To time.Time
}

type subscription struct {
	id int
	fn func(SelectedRange)
}

type Selector struct {
	chart     Chart
	container Container
	margin    Margin

	width, height float64

	ts      TimeScale
	cs      CountScale
	buckets []reqlog.TimeBucket
	scaled  bool
	current time.Time

	subs   []subscription
	nextID int
}

func NewSelector(chart Chart, container Container) *Selector {
	s := &Selector{
		chart:     chart,
		container: container,
		margin:    DefaultMargin,
		height:    DefaultHeight - DefaultMargin.Top - DefaultMargin.Bottom,
	}
	s.width = s.innerWidth()
	return s
}

func (s *Selector) innerWidth() float64 {
	w := s.container.Width() - s.margin.Left - s.margin.Right
	if w < 0 {
		return 0
	}
	return w
}

// Subscribe registers fn for every completed range selection. The returned
// func removes the subscription.
func (s *Selector) Subscribe(fn func(SelectedRange)) func() {
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Selector) SetTimeRange(from, to time.Time, buckets []reqlog.TimeBucket) {
	s.buckets = buckets
	s.ts = TimeScale{From: from, To: to, Width: s.width}
	s.cs = CountScale{Max: reqlog.MaxCount(buckets), Height: s.height}
	s.scaled = true

	s.redraw()
	if !s.current.IsZero() {
		s.UpdateCurrentTime(s.current)
	}
}

func (s *Selector) redraw() {
	s.chart.DrawHistogram(s.buckets, s.ts, s.cs)
	s.chart.AttachBrush(Extent{X0: 0, Y0: 0, X1: s.width, Y1: s.height}, s.onBrushEnd)
}

func (s *Selector) onBrushEnd(x0, x1 float64) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = clamp(x0, 0, s.width)
	x1 = clamp(x1, 0, s.width)
	if x1 <= x0 || !s.scaled {
		return
	}
	r := SelectedRange{From: s.ts.Invert(x0), To: s.ts.Invert(x1)}
	if !r.From.Before(r.To) {
		return
	}
	log.Printf("[TIMELINE] Range selected: %s - %s", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	for _, sub := range append([]subscription(nil), s.subs...) {
		sub.fn(r)
	}
}

// UpdateCurrentTime moves the indicator to t, or hides it when t is zero or
// no range has been set yet.
func (s *Selector) UpdateCurrentTime(t time.Time) {
	s.current = t
	if !s.scaled || t.IsZero() {
		s.chart.PositionIndicator(0, false)
		return
	}
	s.chart.PositionIndicator(s.ts.X(t), true)
}

// OnResize picks up the container's new width. Only the pixel range
// changes; the time and count domains are kept.
func (s *Selector) OnResize() {
	s.width = s.innerWidth()
	if !s.scaled {
		return
	}
	s.ts.Width = s.width
	s.redraw()
	if !s.current.IsZero() {
		s.UpdateCurrentTime(s.current)
	}
}

func (s *Selector) TimeScale() (TimeScale, bool) { return s.ts, s.scaled }

func (s *Selector) CountScale() CountScale { return s.cs }

func (s *Selector) Margin() Margin { return s.margin }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
