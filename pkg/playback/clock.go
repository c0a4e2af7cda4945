package playback

import "time"

// Speeds are the multipliers offered to the user.
var Speeds = []float64{1, 2, 5, 10}

// Clock is the simulated clock. It is a value: every transition returns a
// new Clock and leaves the receiver untouched.
type Clock struct {
	// Current is the simulated instant; zero until the clock is started.
	Current time.Time
	Speed   float64
	Running bool
}

// Start sets the clock running from at.
func (c Clock) Start(at time.Time) Clock {
	c.Current = at
	c.Running = true
	return c
}

// Advance moves simulated time forward by wall*Speed. Stopped clocks and
// negative wall deltas leave it where it is.
func (c Clock) Advance(wall time.Duration) Clock {
	if !c.Running || wall <= 0 {
		return c
	}
	c.Current = c.Current.Add(time.Duration(float64(wall) * c.Speed))
	return c
}

// WithSpeed changes the rate of future advances without moving Current.
func (c Clock) WithSpeed(speed float64) Clock {
	c.Speed = speed
	return c
}

func (c Clock) Stop() Clock {
	c.Running = false
	return c
}
