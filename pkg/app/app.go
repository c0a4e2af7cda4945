// Package app wires the timeline, playback engine and arc manager together
// and owns the fetches that connect them to the request-log API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sudorandom/wirv/pkg/arcs"
	"github.com/sudorandom/wirv/pkg/playback"
	"github.com/sudorandom/wirv/pkg/reqlog"
	"github.com/sudorandom/wirv/pkg/timeline"
)

var ErrUnsupportedSpeed = errors.New("unsupported playback speed")

// Fetcher loads data from the request-log API. Zero from and to ask for the
// server's default window.
type Fetcher interface {
	FetchTimeline(ctx context.Context) ([]reqlog.TimeBucket, error)
	FetchRange(ctx context.Context, from, to time.Time) ([]reqlog.LogEvent, error)
}

type Config struct {
	TTL          time.Duration
	Speed        float64
	FetchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TTL:          arcs.DefaultTTL,
		Speed:        1,
		FetchTimeout: 30 * time.Second,
	}
}

type rangeResult struct {
	gen    uint64
	from   time.Time
	to     time.Time
	events []reqlog.LogEvent
	err    error
}

// Controller must only be used from the frame thread. Fetches run on their
// own goroutines and hand results back through Tick.
type Controller struct {
	cfg      Config
	fetcher  Fetcher
	selector *timeline.Selector
	engine   *playback.Engine
	arcs     *arcs.Manager

	ctx         context.Context
	results     chan rangeResult
	gen         uint64
	cancel      context.CancelFunc
	unsubscribe func()
}

func NewController(ctx context.Context, cfg Config, fetcher Fetcher, selector *timeline.Selector, engine *playback.Engine, mgr *arcs.Manager) *Controller {
	if cfg.TTL <= 0 {
		cfg.TTL = arcs.DefaultTTL
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	c := &Controller{
		cfg:      cfg,
		fetcher:  fetcher,
		selector: selector,
		engine:   engine,
		arcs:     mgr,
		ctx:      ctx,
		results:  make(chan rangeResult, 4),
	}
	c.unsubscribe = selector.Subscribe(c.OnRangeSelected)
	return c
}

// Initialize fetches the histogram and the default range concurrently, seeds
// the selector and starts playback. Whatever loaded is applied even when the
// other request fails; the first error is returned.
func (c *Controller) Initialize(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var (
		g       errgroup.Group
		buckets []reqlog.TimeBucket
		events  []reqlog.LogEvent
		tlErr   error
		rngErr  error
	)
	g.Go(func() error {
		buckets, tlErr = c.fetcher.FetchTimeline(ctx)
		return tlErr
	})
	g.Go(func() error {
		events, rngErr = c.fetcher.FetchRange(ctx, time.Time{}, time.Time{})
		return rngErr
	})
	err := g.Wait()

	if tlErr != nil {
		log.Printf("[APP] Failed to load timeline: %v", tlErr)
	} else if from, to, ok := reqlog.Extent(buckets); ok {
		log.Printf("[APP] Loaded %d timeline buckets", len(buckets))
		c.selector.SetTimeRange(from, to, buckets)
	} else {
		log.Printf("[APP] Timeline is empty")
	}

	if rngErr != nil {
		log.Printf("[APP] Failed to load initial logs: %v", rngErr)
	} else {
		c.play(events)
	}
	return err
}

// OnRangeSelected starts fetching the logs in r. Any fetch still in flight
// is cancelled and its result will be ignored.
func (c *Controller) OnRangeSelected(r timeline.SelectedRange) {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen

	ctx, cancel := c.withTimeout(c.ctx)
	c.cancel = cancel

	go func() {
		events, err := c.fetcher.FetchRange(ctx, r.From, r.To)
		res := rangeResult{gen: gen, from: r.From, to: r.To, events: events, err: err}
		select {
		case c.results <- res:
			return
		case <-ctx.Done():
		}
		// Only superseded or closed fetches are dropped here. A timed-out
		// one still goes through apply.
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		select {
		case c.results <- res:
		case <-c.ctx.Done():
		}
	}()
}

// OnSpeed changes the playback speed. Only the speeds in playback.Speeds are
// accepted.
func (c *Controller) OnSpeed(speed float64) error {
	if !slices.Contains(playback.Speeds, speed) {
		return fmt.Errorf("%w: %v", ErrUnsupportedSpeed, speed)
	}
	if err := c.engine.SetSpeed(speed); err != nil {
		return err
	}
	c.cfg.Speed = speed
	log.Printf("[APP] Playback speed set to %vx", speed)
	return nil
}

func (c *Controller) Speed() float64 { return c.cfg.Speed }

// Tick applies any completed fetch, advances playback and expires old arcs.
func (c *Controller) Tick(now time.Time) {
	c.drain()
	c.engine.Tick(now)
	c.arcs.ExpireOlderThan(now, c.cfg.TTL)
}

// Pending reports whether a range fetch is still outstanding.
func (c *Controller) Pending() bool { return c.cancel != nil }

// Close cancels any in-flight fetch and detaches from the selector.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Controller) drain() {
	for {
		select {
		case res := <-c.results:
			c.apply(res)
		default:
			return
		}
	}
}

func (c *Controller) apply(res rangeResult) {
	if res.gen != c.gen {
		log.Printf("[APP] Discarding stale range result (generation %d, current %d)", res.gen, c.gen)
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if res.err != nil {
		log.Printf("[APP] Failed to load logs for %s - %s: %v",
			res.from.Format(time.RFC3339), res.to.Format(time.RFC3339), res.err)
		return
	}
	log.Printf("[APP] Loaded %d logs for %s - %s",
		len(res.events), res.from.Format(time.RFC3339), res.to.Format(time.RFC3339))
	c.play(res.events)
}

// play replaces whatever is on the globe with a fresh run of events.
func (c *Controller) play(events []reqlog.LogEvent) {
	c.engine.Stop()
	c.arcs.Clear()
	if err := c.engine.Start(events, c.cfg.Speed); err != nil {
		if errors.Is(err, playback.ErrEmptySequence) {
			log.Printf("[APP] No logs in range, nothing to play")
			return
		}
		log.Printf("[APP] Failed to start playback: %v", err)
	}
}

func (c *Controller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.FetchTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.FetchTimeout)
	}
	return context.WithCancel(ctx)
}
