package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/wirv/pkg/reqlog"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	bs, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	ss, err := OpenSQL(ctx, KindSQLite, filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	return map[string]Store{KindBadger: bs, KindSQLite: ss}
}

func logAt(ip string, ts time.Time, score float64) reqlog.LogEvent {
	return reqlog.LogEvent{IP: ip, Timestamp: ts, ClientLat: 51.5, ClientLng: -0.12, Score: score}
}

func TestInsertAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			lat, lng := 48.85, 2.35
			ev := logAt("10.0.0.1", day.Add(1500*time.Millisecond), 0.75)
			ev.ServerLat, ev.ServerLng = &lat, &lng
			ev.Country = "France"

			id, err := s.Insert(ctx, ev)
			require.NoError(t, err)
			assert.Positive(t, id)

			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)
			assert.Equal(t, "10.0.0.1", got.IP)
			assert.True(t, got.Timestamp.Equal(ev.Timestamp), "timestamp %v != %v", got.Timestamp, ev.Timestamp)
			assert.InDelta(t, 0.75, got.Score, 1e-9)
			require.NotNil(t, got.ServerLat)
			assert.InDelta(t, lat, *got.ServerLat, 1e-9)
			assert.Equal(t, "France", got.Country)

			second, err := s.Insert(ctx, ev)
			require.NoError(t, err)
			assert.NotEqual(t, id, second)
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), 9999)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRangeInclusiveAscending(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// Inserted out of order on purpose.
			for _, off := range []time.Duration{3 * time.Hour, 0, 2 * time.Hour, time.Hour, 2 * time.Hour} {
				_, err := s.Insert(ctx, logAt("10.0.0.2", day.Add(off), 0))
				require.NoError(t, err)
			}

			got, err := s.Range(ctx, day.Add(time.Hour), day.Add(2*time.Hour), 0)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.True(t, got[0].Timestamp.Equal(day.Add(time.Hour)))
			assert.True(t, got[1].Timestamp.Equal(day.Add(2*time.Hour)))
			assert.True(t, got[2].Timestamp.Equal(day.Add(2*time.Hour)))
			assert.Less(t, got[1].ID, got[2].ID, "ties are ordered by id")

			limited, err := s.Range(ctx, day, day.Add(3*time.Hour), 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			none, err := s.Range(ctx, day.Add(10*time.Hour), day.Add(11*time.Hour), 0)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestExtent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, _, ok, err := s.Extent(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			for _, off := range []time.Duration{time.Hour, 0, 5 * time.Hour} {
				_, err := s.Insert(ctx, logAt("10.0.0.3", day.Add(off), 0))
				require.NoError(t, err)
			}
			from, to, ok, err := s.Extent(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, from.Equal(day))
			assert.True(t, to.Equal(day.Add(5*time.Hour)))
		})
	}
}

func TestHistogramFillsGaps(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, off := range []time.Duration{
				time.Minute, 2 * time.Minute, 30 * time.Minute,
				3*time.Hour + time.Second,
			} {
				_, err := s.Insert(ctx, logAt("10.0.0.4", day.Add(off), 0))
				require.NoError(t, err)
			}

			got, err := s.Histogram(ctx, time.Hour)
			require.NoError(t, err)
			want := []reqlog.TimeBucket{
				{Timestamp: day, Count: 3},
				{Timestamp: day.Add(time.Hour), Count: 0},
				{Timestamp: day.Add(2 * time.Hour), Count: 0},
				{Timestamp: day.Add(3 * time.Hour), Count: 1},
			}
			require.Len(t, got, len(want))
			for i := range want {
				assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "bucket %d at %v; want %v", i, got[i].Timestamp, want[i].Timestamp)
				assert.Equal(t, want[i].Count, got[i].Count, "bucket %d", i)
			}

			_, err = s.Histogram(ctx, 0)
			assert.Error(t, err)
		})
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: KindPgx}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &SQLStore{driver: KindSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestSortableMillisOrder(t *testing.T) {
	values := []int64{-5000, -1, 0, 1, 1700000000000}
	for i := 1; i < len(values); i++ {
		assert.Less(t, sortableMillis(values[i-1]), sortableMillis(values[i]))
		assert.Equal(t, values[i], millisFromSortable(sortableMillis(values[i])))
	}
}
