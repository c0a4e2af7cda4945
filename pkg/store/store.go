// Package store persists request logs and answers the time-range and
// histogram queries the playback UI is built on.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sudorandom/wirv/pkg/reqlog"
)

var ErrNotFound = errors.New("not found")

// Store is implemented by every backend. Range bounds are inclusive and
// results come back in ascending timestamp order, ties broken by id.
type Store interface {
	Insert(ctx context.Context, ev reqlog.LogEvent) (int64, error)
	Get(ctx context.Context, id int64) (reqlog.LogEvent, error)
	// Range returns at most limit logs; limit <= 0 means no limit.
	Range(ctx context.Context, from, to time.Time, limit int) ([]reqlog.LogEvent, error)
	// Extent reports the earliest and latest stored timestamps. ok is false
	// for an empty store.
	Extent(ctx context.Context) (from, to time.Time, ok bool, err error)
	// Histogram counts logs per fixed-width bucket. Buckets with no logs
	// between the first and last are included with a zero count.
	Histogram(ctx context.Context, width time.Duration) ([]reqlog.TimeBucket, error)
	Close() error
}

const (
	KindBadger = "badger"
	KindSQLite = "sqlite"
	KindPgx    = "pgx"
)

var Kinds = []string{KindBadger, KindSQLite, KindPgx}

// Open opens the backend named by kind. For badger dsn is a directory, for
// sqlite a file path and for pgx a postgres connection string.
func Open(ctx context.Context, kind, dsn string) (Store, error) {
	switch strings.ToLower(kind) {
	case KindBadger:
		return OpenBadger(dsn)
	case KindSQLite, KindPgx:
		return OpenSQL(ctx, strings.ToLower(kind), dsn)
	default:
		return nil, fmt.Errorf("unsupported store %q (want one of %s)", kind, strings.Join(Kinds, ", "))
	}
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
