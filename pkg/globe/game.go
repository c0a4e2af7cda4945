package globe

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/sudorandom/wirv/pkg/app"
	"github.com/sudorandom/wirv/pkg/arcs"
	"github.com/sudorandom/wirv/pkg/geo"
	"github.com/sudorandom/wirv/pkg/playback"
	"github.com/sudorandom/wirv/pkg/timeline"
	"github.com/sudorandom/wirv/pkg/view"
)

var speedKeys = map[ebiten.Key]float64{
	ebiten.KeyDigit1: 1,
	ebiten.KeyDigit2: 2,
	ebiten.KeyDigit5: 5,
	ebiten.KeyDigit0: 10,
}

type Config struct {
	Width, Height int
	App           app.Config
	DefaultServer geo.Location
	Coastline     [][]geo.Vec3
}

// Game implements ebiten.Game. Update is the frame clock for everything in
// the playback core.
type Game struct {
	width, height int

	scene     *Scene
	chart     *Chart
	container *panelContainer
	selector  *timeline.Selector
	arcs      *arcs.Manager
	engine    *playback.Engine
	view      *view.Controller
	ctrl      *app.Controller

	pointer    *pointer
	fontSource *text.GoTextFaceSource
	synced     bool
}

func NewGame(ctx context.Context, cfg Config, fetcher app.Fetcher) *Game {
	s, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		log.Printf("[GLOBE] Failed to load font: %v", err)
	}

	g := &Game{
		width:      cfg.Width,
		height:     cfg.Height,
		fontSource: s,
		container:  &panelContainer{width: float64(cfg.Width)},
		view:       view.NewController(),
	}
	g.pointer = newPointer(g.view)
	var face *text.GoTextFace
	if s != nil {
		face = &text.GoTextFace{Source: s, Size: 12}
	}

	g.scene = NewScene(cfg.Width, cfg.Height)
	g.scene.SetCoastline(cfg.Coastline)
	g.chart = NewChart(face)
	g.chart.SetTop(float64(cfg.Height) - panelHeight)
	g.selector = timeline.NewSelector(g.chart, g.container)
	g.arcs = arcs.NewManager(g.scene, arcs.WithDefaultServer(cfg.DefaultServer))
	g.engine = playback.NewEngine(g.arcs, g.selector)
	g.ctrl = app.NewController(ctx, cfg.App, fetcher, g.selector, g.engine, g.arcs)
	return g
}

// Initialize performs the initial load. It blocks until both requests
// finish or time out.
func (g *Game) Initialize(ctx context.Context) error {
	return g.ctrl.Initialize(ctx)
}

func (g *Game) Close() { g.ctrl.Close() }

func (g *Game) Update() error {
	now := time.Now()
	if !g.synced {
		// Playback may have started before the window opened.
		g.engine.Resync(now)
		g.synced = true
	}
	g.handleInput(now)

	g.view.Tick()
	g.ctrl.Tick(now)

	o := g.view.Orientation()
	g.scene.SetContainerRotation(o.Yaw, o.Pitch)
	return nil
}

func (g *Game) handleInput(now time.Time) {
	cx, cy := ebiten.CursorPosition()
	x, y := float64(cx), float64(cy)

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if g.chart.Contains(x, y) {
			g.chart.BeginBrush(x)
		} else {
			g.pointer.Press(view.Point{X: x, Y: y})
		}
	}

	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		if g.chart.Brushing() {
			g.chart.MoveBrush(x)
		} else {
			g.pointer.Move(view.Point{X: x, Y: y})
		}
	}

	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		if g.chart.Brushing() {
			g.chart.EndBrush()
		}
		g.pointer.Release(now)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.view.OnToggleAutoRotate()
	}
	for key, speed := range speedKeys {
		if inpututil.IsKeyJustPressed(key) {
			if err := g.ctrl.OnSpeed(speed); err != nil {
				log.Printf("[GLOBE] %v", err)
			}
		}
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(ColorBackground)
	g.scene.Draw(screen)
	g.chart.Draw(screen)
	g.drawHUD(screen)
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	if g.fontSource == nil {
		return
	}
	face := &text.GoTextFace{Source: g.fontSource, Size: 14}

	var lines []string
	clock := g.engine.Clock()
	if !clock.Current.IsZero() {
		lines = append(lines, clock.Current.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	played, total := g.engine.Progress()
	lines = append(lines,
		fmt.Sprintf("SPEED %gx   [1] [2] [5] [0]", g.ctrl.Speed()),
		fmt.Sprintf("ARCS %d   PLAYED %d/%d", g.arcs.Len(), played, total),
		strings.ToUpper(g.view.State().String()),
	)
	if g.ctrl.Pending() {
		lines = append(lines, "LOADING...")
	}

	for i, line := range lines {
		op := &text.DrawOptions{}
		op.GeoM.Translate(20, 20+float64(i)*20)
		op.ColorScale.Scale(1, 1, 1, 0.8)
		text.Draw(screen, line, face, op)
	}
}

func (g *Game) Layout(w, h int) (int, int) {
	if w != g.width || h != g.height {
		g.width, g.height = w, h
		g.scene.ResizeViewport(w, h)
		g.container.width = float64(w)
		g.chart.SetTop(float64(h) - panelHeight)
		g.selector.OnResize()
	}
	return w, h
}
