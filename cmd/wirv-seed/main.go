package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sudorandom/wirv/pkg/api"
)

type CLI struct {
	URL     string        `arg:"" help:"Server URL." name:"url"`
	Data    string        `arg:"" help:"CSV file with request logs." name:"data" type:"existingfile"`
	Workers int           `help:"Number of concurrent uploads." default:"1"`
	Timeout time.Duration `help:"Timeout for each upload." default:"10s"`
}

func (c *CLI) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}
	return nil
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("wirv-seed"),
		kong.Description("Uploads a CSV export of request logs to a wirv server."),
	)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(cli.Data)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	s := &seeder{
		client:  api.NewClient(cli.URL),
		out:     os.Stdout,
		workers: cli.Workers,
		timeout: cli.Timeout,
	}
	n, err := s.run(ctx, f)
	if err != nil {
		log.Fatalf("Seeding stopped after %d logs: %v", n, err)
	}
	log.Printf("Inserted %d logs", n)
}
