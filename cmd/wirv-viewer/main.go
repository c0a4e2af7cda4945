package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/sudorandom/wirv/pkg/api"
	"github.com/sudorandom/wirv/pkg/app"
	"github.com/sudorandom/wirv/pkg/geo"
	"github.com/sudorandom/wirv/pkg/globe"
	"github.com/sudorandom/wirv/pkg/playback"
)

type CLI struct {
	APIURL       string        `name:"api-url" help:"Base URL of the request-log server." default:"http://localhost:5000" env:"WIRV_API_URL"`
	ServerLat    float64       `name:"server-lat" help:"Latitude arcs end at when a log has no server location." default:"37.7749"`
	ServerLng    float64       `name:"server-lng" help:"Longitude arcs end at when a log has no server location." default:"-122.4194"`
	TTL          time.Duration `name:"ttl" help:"How long each arc stays on the globe." default:"2s"`
	Speed        float64       `name:"speed" help:"Initial playback speed (1, 2, 5 or 10)." default:"1"`
	Width        int           `help:"Initial window width." default:"1280"`
	Height       int           `help:"Initial window height." default:"720"`
	TPS          int           `name:"tps" help:"Ticks per second (playback updates)." default:"60"`
	CoastlineURL string        `name:"coastline-url" help:"GeoJSON land outlines (URL or path); empty to skip." default:"https://raw.githubusercontent.com/johan/world.geo.json/master/countries.geo.json" env:"WIRV_COASTLINE_URL"`
	FetchTimeout time.Duration `name:"fetch-timeout" help:"Timeout for each API request." default:"30s"`
}

func (c *CLI) Validate() error {
	if !slices.Contains(playback.Speeds, c.Speed) {
		return fmt.Errorf("--speed must be one of 1, 2, 5 or 10, got %v", c.Speed)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("--width and --height must be positive")
	}
	return nil
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("wirv-viewer"),
		kong.Description("Replays request logs as arcs on a rotating globe."),
	)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var coastline [][]geo.Vec3
	if cli.CoastlineURL != "" {
		var err error
		if coastline, err = globe.LoadCoastline(cli.CoastlineURL); err != nil {
			log.Printf("[GLOBE] Failed to load coastline, drawing a bare globe: %v", err)
		} else {
			log.Printf("[GLOBE] Loaded %d coastline rings", len(coastline))
		}
	}

	client := api.NewClient(cli.APIURL)
	game := globe.NewGame(ctx, globe.Config{
		Width:  cli.Width,
		Height: cli.Height,
		App: app.Config{
			TTL:          cli.TTL,
			Speed:        cli.Speed,
			FetchTimeout: cli.FetchTimeout,
		},
		DefaultServer: geo.Location{Lat: cli.ServerLat, Lng: cli.ServerLng},
		Coastline:     coastline,
	}, client)
	defer game.Close()

	log.Printf("Arc TTL %s, default server %.4f,%.4f", cli.TTL, cli.ServerLat, cli.ServerLng)
	log.Printf("Loading request logs from %s", cli.APIURL)
	if err := game.Initialize(ctx); err != nil {
		log.Printf("Initial load incomplete: %v", err)
	}

	ebiten.SetTPS(cli.TPS)
	ebiten.SetWindowSize(cli.Width, cli.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowTitle("wirv - request log globe")
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
