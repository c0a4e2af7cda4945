package timeline

import "time"

// TimeScale maps the instants in [From, To] linearly onto pixels [0, Width].
type TimeScale struct {
	From, To time.Time
	Width    float64
}

func (s TimeScale) span() time.Duration { return s.To.Sub(s.From) }

// X returns the pixel position of t. A zero-length domain maps everything
// to the middle of the range.
func (s TimeScale) X(t time.Time) float64 {
	span := s.span()
	if span == 0 {
		return s.Width / 2
	}
	return float64(t.Sub(s.From)) / float64(span) * s.Width
}

// Invert returns the instant at pixel x.
func (s TimeScale) Invert(x float64) time.Time {
	if s.Width == 0 {
		return s.From
	}
	return s.From.Add(time.Duration(x / s.Width * float64(s.span())))
}

// CountScale maps counts in [0, Max] onto pixels [Height, 0], so larger
// counts sit higher up the chart.
type CountScale struct {
	Max    int
	Height float64
}

func (s CountScale) Y(count int) float64 {
	if s.Max <= 0 {
		return s.Height
	}
	return s.Height - float64(count)/float64(s.Max)*s.Height
}
