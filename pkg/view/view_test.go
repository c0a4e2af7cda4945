package view

import (
	"math"
	"testing"
)

func TestInitialState(t *testing.T) {
	c := NewController()
	if c.State() != AutoRotating {
		t.Errorf("initial state = %v; want %v", c.State(), AutoRotating)
	}
}

func TestDragHorizontal(t *testing.T) {
	c := NewController()
	c.OnDragStart(Point{X: 10, Y: 10})
	if c.State() != Dragging {
		t.Fatalf("state = %v; want %v", c.State(), Dragging)
	}
	c.OnDragMove(Point{X: 110, Y: 10})

	o := c.Orientation()
	if o.Yaw <= 0 {
		t.Errorf("yaw = %f; want > 0", o.Yaw)
	}
	if o.Pitch != 0 {
		t.Errorf("pitch = %f; want 0", o.Pitch)
	}
	if o.AutoRotating {
		t.Error("auto-rotation should be disabled while dragging")
	}

	c.OnDragEnd()
	if c.State() != Idle {
		t.Errorf("state after drag end = %v; want %v", c.State(), Idle)
	}
	yaw := c.Orientation().Yaw
	c.Tick()
	if c.Orientation().Yaw != yaw {
		t.Error("globe must not rotate while idle")
	}
}

func TestDragMoveUsesIncrementalDelta(t *testing.T) {
	c := NewController()
	c.OnDragStart(Point{})
	c.OnDragMove(Point{X: 50})
	c.OnDragMove(Point{X: 100})

	want := 100 * c.Sensitivity
	if got := c.Orientation().Yaw; math.Abs(got-want) > 1e-12 {
		t.Errorf("yaw = %f; want %f", got, want)
	}
}

func TestDragMoveOutsideDragIgnored(t *testing.T) {
	c := NewController()
	c.OnDragMove(Point{X: 500, Y: 500})
	if o := c.Orientation(); o.Yaw != 0 || o.Pitch != 0 {
		t.Errorf("move without drag changed orientation: %+v", o)
	}
}

func TestPitchClamped(t *testing.T) {
	c := NewController()
	c.OnDragStart(Point{})
	c.OnDragMove(Point{Y: 100000})
	if p := c.Orientation().Pitch; p != math.Pi/2 {
		t.Errorf("pitch = %f; want %f", p, math.Pi/2)
	}
	c.OnDragMove(Point{Y: -100000})
	if p := c.Orientation().Pitch; p != -math.Pi/2 {
		t.Errorf("pitch = %f; want %f", p, -math.Pi/2)
	}
}

func TestToggleResumesWithPitchDecay(t *testing.T) {
	c := NewController()
	c.OnDragStart(Point{})
	c.OnDragMove(Point{X: 100, Y: 100})
	c.OnDragEnd()

	pitch := c.Orientation().Pitch
	if pitch <= 0 {
		t.Fatalf("pitch = %f; want > 0 after vertical drag", pitch)
	}

	c.OnToggleAutoRotate()
	if c.State() != AutoRotating {
		t.Fatalf("state = %v; want %v", c.State(), AutoRotating)
	}
	if c.Orientation().Pitch != pitch {
		t.Error("pitch must not snap when auto-rotation resumes")
	}

	prev := pitch
	for i := 0; i < 10; i++ {
		c.Tick()
		p := c.Orientation().Pitch
		if p >= prev || p <= 0 {
			t.Fatalf("tick %d: pitch %f should decay from %f toward 0", i, p, prev)
		}
		prev = p
	}
	if want := pitch * math.Pow(DefaultPitchDecay, 10); math.Abs(prev-want) > 1e-12 {
		t.Errorf("pitch after 10 ticks = %f; want %f", prev, want)
	}
}

func TestToggleIgnoredDuringDrag(t *testing.T) {
	c := NewController()
	c.OnDragStart(Point{})
	c.OnToggleAutoRotate()
	if o := c.Orientation(); o.AutoRotating {
		t.Error("auto-rotation must stay off during a drag")
	}
}

func TestAutoRotateAdvancesYaw(t *testing.T) {
	c := NewController()
	c.Tick()
	c.Tick()
	if got, want := c.Orientation().Yaw, 2*DefaultRotationRate; math.Abs(got-want) > 1e-12 {
		t.Errorf("yaw = %f; want %f", got, want)
	}
}
