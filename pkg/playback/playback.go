// Package playback replays a time-ordered list of request logs against a
// simulated clock driven by the display's frame ticks.
package playback

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sudorandom/wirv/pkg/reqlog"
)

var (
	ErrEmptySequence = errors.New("no events to play")
	ErrInvalidSpeed  = errors.New("speed must be positive")
)

// ArcSink receives each event as it becomes due.
type ArcSink interface {
	Add(ev reqlog.LogEvent) (int64, error)
}

// TimeIndicator is told the simulated time after every advance.
type TimeIndicator interface {
	UpdateCurrentTime(t time.Time)
}

type Engine struct {
	arcs      ArcSink
	indicator TimeIndicator
	now       func() time.Time

	events   []reqlog.LogEvent
	cursor   int
	clock    Clock
	lastWall time.Time
}

func NewEngine(arcs ArcSink, indicator TimeIndicator) *Engine {
	return &Engine{
		arcs:      arcs,
		indicator: indicator,
		now:       time.Now,
		clock:     Clock{Speed: 1},
	}
}

// SetClock overrides the wall clock used to anchor Start.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Start replays events from the first one at the given speed. Events must be
// sorted by timestamp; the engine does not sort them.
func (e *Engine) Start(events []reqlog.LogEvent, speed float64) error {
	if len(events) == 0 {
		return ErrEmptySequence
	}
	if speed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	e.events = events
	e.cursor = 0
	e.lastWall = e.now()
	e.clock = e.clock.WithSpeed(speed).Start(events[0].Timestamp)
	log.Printf("[PLAYBACK] Starting %d events from %s at %vx",
		len(events), events[0].Timestamp.Format(time.RFC3339), speed)
	return nil
}

// SetSpeed changes how fast simulated time advances from the next tick on.
// Neither the cursor nor the current simulated time move.
func (e *Engine) SetSpeed(speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	e.clock = e.clock.WithSpeed(speed)
	return nil
}

// Resync re-anchors the wall clock at now without advancing simulated time.
func (e *Engine) Resync(now time.Time) {
	if e.clock.Running {
		e.lastWall = now
	}
}

// Stop halts playback; subsequent ticks do nothing until Start.
func (e *Engine) Stop() {
	e.clock = e.clock.Stop()
}

// Tick advances simulated time by the wall time elapsed since the previous
// tick, scaled by the speed, then hands every event that is now due to the
// arc sink in sequence order.
func (e *Engine) Tick(now time.Time) {
	if !e.clock.Running {
		return
	}
	delta := now.Sub(e.lastWall)
	if delta > 0 {
		e.lastWall = now
	}
	e.clock = e.clock.Advance(delta)
	e.indicator.UpdateCurrentTime(e.clock.Current)

	for e.cursor < len(e.events) && !e.events[e.cursor].Timestamp.After(e.clock.Current) {
		ev := e.events[e.cursor]
		if _, err := e.arcs.Add(ev); err != nil {
			log.Printf("[PLAYBACK] Skipping event %d: %v", ev.ID, err)
		}
		e.cursor++
	}

	if e.cursor >= len(e.events) {
		e.clock = e.clock.Stop()
		log.Printf("[PLAYBACK] Finished after %d events", len(e.events))
	}
}

func (e *Engine) Clock() Clock { return e.clock }

func (e *Engine) Running() bool { return e.clock.Running }

func (e *Engine) Speed() float64 { return e.clock.Speed }

// Progress returns how many events have been played out of the total.
func (e *Engine) Progress() (played, total int) { return e.cursor, len(e.events) }
