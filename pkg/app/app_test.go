package app

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/sudorandom/wirv/pkg/arcs"
	"github.com/sudorandom/wirv/pkg/geo"
	"github.com/sudorandom/wirv/pkg/playback"
	"github.com/sudorandom/wirv/pkg/reqlog"
	"github.com/sudorandom/wirv/pkg/timeline"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type rangeCall struct {
	from, to time.Time
}

type fakeFetcher struct {
	mu sync.Mutex

	buckets     []reqlog.TimeBucket
	timelineErr error

	initial  []reqlog.LogEvent
	rangeErr error
	byFrom   map[time.Time][]reqlog.LogEvent
	block    map[time.Time]chan struct{}

	calls chan rangeCall
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		byFrom: make(map[time.Time][]reqlog.LogEvent),
		block:  make(map[time.Time]chan struct{}),
		calls:  make(chan rangeCall, 16),
	}
}

func (f *fakeFetcher) FetchTimeline(ctx context.Context) ([]reqlog.TimeBucket, error) {
	return f.buckets, f.timelineErr
}

func (f *fakeFetcher) FetchRange(ctx context.Context, from, to time.Time) ([]reqlog.LogEvent, error) {
	f.calls <- rangeCall{from: from, to: to}
	if from.IsZero() && to.IsZero() {
		return f.initial, f.rangeErr
	}

	f.mu.Lock()
	release := f.block[from]
	events := f.byFrom[from]
	err := f.rangeErr
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return events, err
}

type fakeChart struct {
	brush func(x0, x1 float64)
}

func (c *fakeChart) DrawHistogram([]reqlog.TimeBucket, timeline.TimeScale, timeline.CountScale) {}
func (c *fakeChart) AttachBrush(_ timeline.Extent, fn func(x0, x1 float64))                      { c.brush = fn }
func (c *fakeChart) PositionIndicator(float64, bool)                                              {}

type fixedContainer float64

func (w fixedContainer) Width() float64 { return float64(w) }

type nopRenderer struct{ n arcs.Handle }

func (r *nopRenderer) CreatePath([]geo.Vec3, arcs.PathStyle) arcs.Handle { r.n++; return r.n }
func (r *nopRenderer) CreateMarker(color.RGBA, geo.Vec3) arcs.Handle     { r.n++; return r.n }
func (r *nopRenderer) Destroy(arcs.Handle)                               {}

type harness struct {
	ctrl    *Controller
	fetcher *fakeFetcher
	chart   *fakeChart
	engine  *playback.Engine
	arcs    *arcs.Manager
}

func newHarness(t *testing.T, f *fakeFetcher) *harness {
	t.Helper()
	return newHarnessWithConfig(t, f, DefaultConfig())
}

func newHarnessWithConfig(t *testing.T, f *fakeFetcher, cfg Config) *harness {
	t.Helper()
	chart := &fakeChart{}
	// 400px plotting area once the default margins are taken off.
	width := 400 + timeline.DefaultMargin.Left + timeline.DefaultMargin.Right
	sel := timeline.NewSelector(chart, fixedContainer(width))
	mgr := arcs.NewManager(&nopRenderer{})
	eng := playback.NewEngine(mgr, sel)

	ctrl := NewController(context.Background(), cfg, f, sel, eng, mgr)
	t.Cleanup(ctrl.Close)
	return &harness{ctrl: ctrl, fetcher: f, chart: chart, engine: eng, arcs: mgr}
}

func (h *harness) waitCall(t *testing.T) rangeCall {
	t.Helper()
	select {
	case c := <-h.fetcher.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a range fetch")
		return rangeCall{}
	}
}

func (h *harness) tickUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the controller")
		}
		h.ctrl.Tick(time.Now())
		time.Sleep(time.Millisecond)
	}
}

func events(ids ...int64) []reqlog.LogEvent {
	evs := make([]reqlog.LogEvent, len(ids))
	for i, id := range ids {
		evs[i] = reqlog.LogEvent{ID: id, Timestamp: day.Add(time.Duration(i) * time.Hour)}
	}
	return evs
}

func fourHourTimeline() []reqlog.TimeBucket {
	return []reqlog.TimeBucket{
		{Timestamp: day, Count: 3},
		{Timestamp: day.Add(2 * time.Hour), Count: 7},
		{Timestamp: day.Add(4 * time.Hour), Count: 1},
	}
}

func TestInitializeStartsPlayback(t *testing.T) {
	f := newFakeFetcher()
	f.buckets = fourHourTimeline()
	f.initial = events(1, 2, 3)
	h := newHarness(t, f)

	if err := h.ctrl.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if c := h.waitCall(t); !c.from.IsZero() || !c.to.IsZero() {
		t.Errorf("initial fetch should ask for the default window, got %v - %v", c.from, c.to)
	}
	if !h.engine.Running() {
		t.Error("playback should be running after initial load")
	}
	if h.chart.brush == nil {
		t.Error("selector should have a brush attached after initial load")
	}
}

func TestInitializeAppliesPartialResults(t *testing.T) {
	f := newFakeFetcher()
	f.timelineErr = errors.New("boom")
	f.initial = events(1)
	h := newHarness(t, f)

	if err := h.ctrl.Initialize(context.Background()); err == nil {
		t.Fatal("expected an error when the timeline fails")
	}
	if !h.engine.Running() {
		t.Error("logs that did load should still play")
	}
	if h.chart.brush != nil {
		t.Error("no brush should be attached without a timeline")
	}
}

func TestBrushTriggersExactlyOneFetch(t *testing.T) {
	f := newFakeFetcher()
	f.buckets = fourHourTimeline()
	f.initial = events(1)
	h := newHarness(t, f)
	if err := h.ctrl.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitCall(t)

	f.byFrom[day] = events(10, 11)
	h.chart.brush(0, 100)

	call := h.waitCall(t)
	if !call.from.Equal(day) || !call.to.Equal(day.Add(time.Hour)) {
		t.Errorf("fetched %v - %v; want 00:00 - 01:00", call.from, call.to)
	}
	h.tickUntil(t, func() bool { return !h.ctrl.Pending() })

	select {
	case extra := <-f.calls:
		t.Errorf("unexpected second fetch %v - %v", extra.from, extra.to)
	default:
	}
	if played, total := h.engine.Progress(); total != 2 || played < 1 {
		t.Errorf("progress = %d/%d; want the 2 fetched events playing", played, total)
	}
	if h.arcs.Has(1) {
		t.Error("arcs from the previous range should have been cleared")
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	f := newFakeFetcher()
	h := newHarness(t, f)

	first := day
	second := day.Add(2 * time.Hour)
	f.block[first] = make(chan struct{})
	f.byFrom[first] = events(1, 2, 3)
	f.byFrom[second] = events(20)

	h.ctrl.OnRangeSelected(timeline.SelectedRange{From: first, To: first.Add(time.Hour)})
	h.waitCall(t)
	h.ctrl.OnRangeSelected(timeline.SelectedRange{From: second, To: second.Add(time.Hour)})
	h.waitCall(t)

	h.tickUntil(t, func() bool { return !h.ctrl.Pending() })
	close(f.block[first])

	// A late result from the cancelled fetch must not replace the new run.
	h.ctrl.apply(rangeResult{gen: 1, events: events(1, 2, 3)})
	if _, total := h.engine.Progress(); total != 1 {
		t.Errorf("playing %d events; want the 1 event from the newest selection", total)
	}
	if !h.arcs.Has(20) {
		t.Error("arc for the newest selection should be on the globe")
	}
}

func TestFailedFetchLeavesStateIntact(t *testing.T) {
	f := newFakeFetcher()
	f.initial = events(1, 2)
	h := newHarness(t, f)
	if err := h.ctrl.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.ctrl.Tick(time.Now())
	if !h.arcs.Has(1) {
		t.Fatal("first arc should be on the globe")
	}

	f.rangeErr = errors.New("connection refused")
	h.ctrl.OnRangeSelected(timeline.SelectedRange{From: day, To: day.Add(time.Hour)})
	h.tickUntil(t, func() bool { return !h.ctrl.Pending() })

	if !h.arcs.Has(1) {
		t.Error("a failed fetch must not clear the globe")
	}
	if _, total := h.engine.Progress(); total != 2 {
		t.Errorf("playing %d events; want the original 2", total)
	}
}

func TestTimedOutFetchIsReported(t *testing.T) {
	f := newFakeFetcher()
	f.initial = events(1, 2)
	cfg := DefaultConfig()
	cfg.FetchTimeout = 5 * time.Millisecond
	h := newHarnessWithConfig(t, f, cfg)
	if err := h.ctrl.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitCall(t)
	h.ctrl.Tick(time.Now())

	// The fetch never finishes on its own; only the timeout ends it.
	f.block[day] = make(chan struct{})
	defer close(f.block[day])

	for i := 0; i < 20; i++ {
		h.ctrl.OnRangeSelected(timeline.SelectedRange{From: day, To: day.Add(time.Hour)})
		h.waitCall(t)
		if !h.ctrl.Pending() {
			t.Fatal("fetch should be pending right after a selection")
		}
		h.tickUntil(t, func() bool { return !h.ctrl.Pending() })

		if !h.arcs.Has(1) {
			t.Fatal("a timed-out fetch must not clear the globe")
		}
		if _, total := h.engine.Progress(); total != 2 {
			t.Fatalf("playing %d events; want the original 2", total)
		}
	}
}

func TestEmptyResultClearsAndStops(t *testing.T) {
	f := newFakeFetcher()
	f.initial = events(1, 2)
	h := newHarness(t, f)
	if err := h.ctrl.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.ctrl.Tick(time.Now())

	h.ctrl.OnRangeSelected(timeline.SelectedRange{From: day, To: day.Add(time.Hour)})
	h.tickUntil(t, func() bool { return !h.ctrl.Pending() })

	if h.engine.Running() {
		t.Error("engine should be stopped after an empty range")
	}
	if h.arcs.Len() != 0 || h.arcs.HasServerMarker() {
		t.Error("globe should be empty after an empty range")
	}
}

func TestOnSpeed(t *testing.T) {
	h := newHarness(t, newFakeFetcher())

	for _, bad := range []float64{0, 3, -1, 100} {
		if err := h.ctrl.OnSpeed(bad); !errors.Is(err, ErrUnsupportedSpeed) {
			t.Errorf("OnSpeed(%v) = %v; want ErrUnsupportedSpeed", bad, err)
		}
	}
	if err := h.ctrl.OnSpeed(5); err != nil {
		t.Fatal(err)
	}
	if h.ctrl.Speed() != 5 || h.engine.Speed() != 5 {
		t.Errorf("speed = %v/%v; want 5", h.ctrl.Speed(), h.engine.Speed())
	}
}

func TestNewSelectionUsesCurrentSpeed(t *testing.T) {
	f := newFakeFetcher()
	f.byFrom[day] = events(1, 2)
	h := newHarness(t, f)
	if err := h.ctrl.OnSpeed(10); err != nil {
		t.Fatal(err)
	}

	h.ctrl.OnRangeSelected(timeline.SelectedRange{From: day, To: day.Add(time.Hour)})
	h.tickUntil(t, func() bool { return !h.ctrl.Pending() })

	if h.engine.Speed() != 10 {
		t.Errorf("engine speed = %v; want 10", h.engine.Speed())
	}
}
