package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sudorandom/wirv/pkg/api"
	"github.com/sudorandom/wirv/pkg/reqlog"
)

type logCreator interface {
	CreateLog(ctx context.Context, req api.CreateLogRequest) (int64, error)
}

type seeder struct {
	client  logCreator
	out     io.Writer
	workers int
	timeout time.Duration

	mu sync.Mutex
}

// run uploads every row of the CSV in r and returns how many were inserted.
// The first failed row stops the upload.
func (s *seeder) run(ctx context.Context, r io.Reader) (int, error) {
	cr, err := reqlog.NewCSVReader(r)
	if err != nil {
		return 0, err
	}

	var inserted atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.workers))

	for index := 0; ; index++ {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = g.Wait()
			return int(inserted.Load()), fmt.Errorf("row %d: %w", index, err)
		}
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			id, err := s.upload(ctx, rec)
			if err != nil {
				return fmt.Errorf("row %d: %w", index, err)
			}
			inserted.Add(1)
			s.mu.Lock()
			defer s.mu.Unlock()
			_, err = fmt.Fprintf(s.out, "[%05d] inserted log with id: %d\n", index, id)
			return err
		})
	}
	err = g.Wait()
	return int(inserted.Load()), err
}

func (s *seeder) upload(ctx context.Context, rec reqlog.CSVRecord) (int64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	lat, lng := rec.Lat, rec.Lng
	return s.client.CreateLog(ctx, api.CreateLogRequest{
		IP:         rec.IP,
		Timestamp:  rec.Timestamp.Format(time.RFC3339),
		Latitude:   &lat,
		Longitude:  &lng,
		Suspicious: rec.Score,
	})
}
