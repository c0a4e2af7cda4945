package globe

import (
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/sudorandom/wirv/pkg/reqlog"
	"github.com/sudorandom/wirv/pkg/timeline"
)

const panelHeight = timeline.DefaultHeight

var (
	ColorPanel     = color.RGBA{0, 0, 0, 160}
	ColorBar       = color.RGBA{70, 130, 180, 255}
	ColorBrush     = color.RGBA{255, 255, 255, 40}
	ColorBrushEdge = color.RGBA{255, 255, 255, 120}
	ColorIndicator = color.RGBA{255, 0, 0, 255}
)

// panelContainer reports the width of the histogram panel, which always
// spans the window.
type panelContainer struct{ width float64 }

func (c *panelContainer) Width() float64 { return c.width }

// Chart renders the histogram panel along the bottom of the window and turns
// mouse drags inside it into brush gestures.
type Chart struct {
	top    float64
	margin timeline.Margin
	face   *text.GoTextFace

	buckets []reqlog.TimeBucket
	ts      timeline.TimeScale
	cs      timeline.CountScale
	drawn   bool

	extent  timeline.Extent
	onBrush func(x0, x1 float64)

	indicatorX       float64
	indicatorVisible bool

	brushing         bool
	brushX0, brushX1 float64
	selFrom, selTo   time.Time
}

func NewChart(face *text.GoTextFace) *Chart {
	return &Chart{margin: timeline.DefaultMargin, face: face}
}

// SetTop moves the panel so its top edge is at screen row y.
func (c *Chart) SetTop(y float64) { c.top = y }

func (c *Chart) DrawHistogram(buckets []reqlog.TimeBucket, ts timeline.TimeScale, cs timeline.CountScale) {
	c.buckets, c.ts, c.cs = buckets, ts, cs
	c.drawn = true
}

func (c *Chart) AttachBrush(extent timeline.Extent, onComplete func(x0, x1 float64)) {
	c.extent = extent
	c.onBrush = onComplete
}

func (c *Chart) PositionIndicator(x float64, visible bool) {
	c.indicatorX, c.indicatorVisible = x, visible
}

// local converts screen coordinates into the plot area's coordinates.
func (c *Chart) local(x, y float64) (float64, float64) {
	return x - c.margin.Left, y - c.top - c.margin.Top
}

// Contains reports whether the screen point lies inside the brushable area.
func (c *Chart) Contains(x, y float64) bool {
	if c.onBrush == nil {
		return false
	}
	lx, ly := c.local(x, y)
	return lx >= c.extent.X0 && lx <= c.extent.X1 && ly >= c.extent.Y0 && ly <= c.extent.Y1
}

func (c *Chart) BeginBrush(x float64) {
	lx, _ := c.local(x, 0)
	c.brushing = true
	c.brushX0, c.brushX1 = lx, lx
}

func (c *Chart) MoveBrush(x float64) {
	if !c.brushing {
		return
	}
	c.brushX1, _ = c.local(x, 0)
}

// EndBrush completes the gesture and reports it through the attached
// callback. A click without a drag clears the highlighted selection.
func (c *Chart) EndBrush() {
	if !c.brushing {
		return
	}
	c.brushing = false
	x0, x1 := c.brushX0, c.brushX1
	if math.Abs(x1-x0) < 1 {
		c.selFrom, c.selTo = time.Time{}, time.Time{}
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = math.Max(c.extent.X0, x0)
	x1 = math.Min(c.extent.X1, x1)
	c.selFrom, c.selTo = c.ts.Invert(x0), c.ts.Invert(x1)
	if c.onBrush != nil {
		c.onBrush(c.brushX0, c.brushX1)
	}
}

func (c *Chart) Brushing() bool { return c.brushing }

func (c *Chart) Draw(screen *ebiten.Image) {
	w := float64(screen.Bounds().Dx())
	vector.DrawFilledRect(screen, 0, float32(c.top), float32(w), float32(panelHeight), ColorPanel, false)
	vector.StrokeLine(screen, 0, float32(c.top), float32(w), float32(c.top), 1, ColorLimb, false)
	if !c.drawn {
		return
	}

	ox, oy := c.margin.Left, c.top+c.margin.Top
	plotH := c.cs.Height

	if n := len(c.buckets); n > 0 {
		barW := c.ts.Width / float64(n)
		for _, b := range c.buckets {
			y := c.cs.Y(b.Count)
			x := c.ts.X(b.Timestamp)
			vector.DrawFilledRect(screen, float32(ox+x-barW/2), float32(oy+y), float32(math.Max(1, barW-1)), float32(plotH-y), ColorBar, false)
		}
	}
	vector.StrokeLine(screen, float32(ox), float32(oy+plotH), float32(ox+c.ts.Width), float32(oy+plotH), 1, ColorLimb, false)

	switch {
	case c.brushing:
		x0, x1 := math.Min(c.brushX0, c.brushX1), math.Max(c.brushX0, c.brushX1)
		c.drawSelection(screen, ox+x0, ox+x1, oy, plotH)
	case !c.selFrom.IsZero():
		c.drawSelection(screen, ox+c.ts.X(c.selFrom), ox+c.ts.X(c.selTo), oy, plotH)
	}

	if c.indicatorVisible {
		x := float32(ox + c.indicatorX)
		vector.StrokeLine(screen, x, float32(oy), x, float32(oy+plotH), 2, ColorIndicator, false)
	}

	if c.face != nil {
		c.drawLabel(screen, c.ts.From.UTC().Format("2006-01-02 15:04"), ox, oy+plotH+4, false)
		c.drawLabel(screen, c.ts.To.UTC().Format("2006-01-02 15:04"), ox+c.ts.Width, oy+plotH+4, true)
	}
}

func (c *Chart) drawSelection(screen *ebiten.Image, x0, x1, y, h float64) {
	vector.DrawFilledRect(screen, float32(x0), float32(y), float32(x1-x0), float32(h), ColorBrush, false)
	vector.StrokeRect(screen, float32(x0), float32(y), float32(x1-x0), float32(h), 1, ColorBrushEdge, false)
}

func (c *Chart) drawLabel(screen *ebiten.Image, s string, x, y float64, alignRight bool) {
	if alignRight {
		tw, _ := text.Measure(s, c.face, 0)
		x -= tw
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.Scale(1, 1, 1, 0.6)
	text.Draw(screen, s, c.face, op)
}
