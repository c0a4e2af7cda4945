package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/sudorandom/wirv/pkg/api"
	"github.com/sudorandom/wirv/pkg/geoip"
	"github.com/sudorandom/wirv/pkg/store"
)

type CLI struct {
	Listen       string        `help:"Address to listen on." default:":5000" env:"WIRV_LISTEN"`
	Store        string        `help:"Storage backend: badger, sqlite or pgx." default:"sqlite" env:"WIRV_STORE"`
	DSN          string        `name:"dsn" help:"Badger directory, sqlite file or postgres connection string." default:"data/wirv.db" env:"WIRV_DSN"`
	BucketWidth  time.Duration `name:"bucket-width" help:"Histogram bucket width." default:"1h"`
	MaxRangeLogs int           `name:"max-range-logs" help:"Most logs returned by one range query (0 for no limit)." default:"50000"`
	GeoIPDB      string        `name:"geoip-db" help:"MaxMind city database (path or URL) used to fill in missing coordinates." env:"WIRV_GEOIP_DB"`
}

func (c *CLI) Validate() error {
	if !slices.Contains(store.Kinds, c.Store) {
		return fmt.Errorf("--store must be one of %v, got %q", store.Kinds, c.Store)
	}
	if c.BucketWidth <= 0 {
		return fmt.Errorf("--bucket-width must be positive")
	}
	if c.MaxRangeLogs < 0 {
		return fmt.Errorf("--max-range-logs must not be negative")
	}
	return nil
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("wirv-server"),
		kong.Description("Stores request logs and serves them to the globe viewer."),
	)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cli CLI) error {
	st, err := store.Open(ctx, cli.Store, cli.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("[STORE] Error closing store: %v", err)
		}
	}()
	log.Printf("[STORE] Opened %s store at %s", cli.Store, cli.DSN)

	var opts []api.ServerOption
	if cli.GeoIPDB != "" {
		locator, err := geoip.Open(cli.GeoIPDB)
		if err != nil {
			return err
		}
		defer func() { _ = locator.Close() }()
		opts = append(opts, api.WithEnricher(locator))
		log.Printf("[GEOIP] Enriching logs from %s", cli.GeoIPDB)
	}

	srv := &http.Server{
		Addr: cli.Listen,
		Handler: api.NewServer(st, api.ServerConfig{
			BucketWidth:  cli.BucketWidth,
			MaxRangeLogs: cli.MaxRangeLogs,
		}, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[API] Listening on %s", cli.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("[API] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
