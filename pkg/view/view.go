// Package view tracks how the globe is oriented: pointer drags orbit it and,
// when idle, it slowly spins on its own.
package view

import "math"

type State int

const (
	Idle State = iota
	Dragging
	AutoRotating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case AutoRotating:
		return "auto-rotating"
	}
	return "unknown"
}

const (
	DefaultRotationRate = 0.001 // radians per frame
	DefaultSensitivity  = 0.005 // radians per pixel
	DefaultPitchDecay   = 0.95
)

type Point struct {
	X, Y float64
}

type Orientation struct {
	Yaw, Pitch   float64
	AutoRotating bool
	Dragging     bool
}

type Controller struct {
	RotationRate float64
	Sensitivity  float64
	PitchDecay   float64

	o      Orientation
	anchor Point
}

func NewController() *Controller {
	return &Controller{
		RotationRate: DefaultRotationRate,
		Sensitivity:  DefaultSensitivity,
		PitchDecay:   DefaultPitchDecay,
		o:            Orientation{AutoRotating: true},
	}
}

func (c *Controller) State() State {
	switch {
	case c.o.Dragging:
		return Dragging
	case c.o.AutoRotating:
		return AutoRotating
	}
	return Idle
}

func (c *Controller) Orientation() Orientation { return c.o }

func (c *Controller) OnDragStart(p Point) {
	c.anchor = p
	c.o.Dragging = true
	c.o.AutoRotating = false
}

// OnDragMove is ignored unless a drag is in progress.
func (c *Controller) OnDragMove(p Point) {
	if !c.o.Dragging {
		return
	}
	dx, dy := p.X-c.anchor.X, p.Y-c.anchor.Y
	c.o.Yaw += dx * c.Sensitivity
	c.o.Pitch = clampPitch(c.o.Pitch + dy*c.Sensitivity)
	c.anchor = p
}

// OnDragEnd leaves auto-rotation off until it is toggled back on.
func (c *Controller) OnDragEnd() {
	c.o.Dragging = false
}

// OnToggleAutoRotate flips auto-rotation. It has no effect mid-drag.
func (c *Controller) OnToggleAutoRotate() {
	if c.o.Dragging {
		return
	}
	c.o.AutoRotating = !c.o.AutoRotating
}

// Tick advances one display frame. While auto-rotating the globe spins by
// RotationRate and pitch eases back toward the equator.
func (c *Controller) Tick() {
	if !c.o.AutoRotating || c.o.Dragging {
		return
	}
	c.o.Yaw = math.Mod(c.o.Yaw+c.RotationRate, 2*math.Pi)
	c.o.Pitch *= c.PitchDecay
}

func clampPitch(p float64) float64 {
	return math.Max(-math.Pi/2, math.Min(math.Pi/2, p))
}
