package globe

import (
	"math"
	"time"

	"github.com/sudorandom/wirv/pkg/view"
)

const (
	doubleClickInterval = 300 * time.Millisecond
	dragThreshold       = 3 // pixels
)

// pointer turns raw button presses into view gestures. A press only becomes
// a drag once it moves past dragThreshold; a press released before that is a
// click, and two clicks within doubleClickInterval toggle auto-rotation.
type pointer struct {
	view *view.Controller

	pressed   bool
	dragging  bool
	origin    view.Point
	lastClick time.Time
}

func newPointer(v *view.Controller) *pointer {
	return &pointer{view: v}
}

func (p *pointer) Press(pt view.Point) {
	p.pressed = true
	p.dragging = false
	p.origin = pt
}

func (p *pointer) Move(pt view.Point) {
	if !p.pressed {
		return
	}
	if !p.dragging {
		if math.Hypot(pt.X-p.origin.X, pt.Y-p.origin.Y) < dragThreshold {
			return
		}
		p.dragging = true
		p.view.OnDragStart(p.origin)
	}
	p.view.OnDragMove(pt)
}

func (p *pointer) Release(now time.Time) {
	if !p.pressed {
		return
	}
	p.pressed = false
	if p.dragging {
		p.dragging = false
		p.view.OnDragEnd()
		p.lastClick = time.Time{}
		return
	}

	if !p.lastClick.IsZero() && now.Sub(p.lastClick) < doubleClickInterval {
		p.view.OnToggleAutoRotate()
		p.lastClick = time.Time{}
		return
	}
	p.lastClick = now
}
