package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/sudorandom/wirv/pkg/reqlog"
)

// SQLStore keeps logs in a request_log table on sqlite or postgres.
// Timestamps are stored as unix milliseconds so both engines order and
// bucket them the same way.
type SQLStore struct {
	db     *sql.DB
	driver string
}

const logColumns = `id, ip, ts_ms, latitude, longitude, server_latitude, server_longitude, suspicious, country`

func schema(driver string) []string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == KindPgx {
		id = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS request_log (
	id ` + id + `,
	ip TEXT NOT NULL,
	ts_ms BIGINT NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	server_latitude DOUBLE PRECISION,
	server_longitude DOUBLE PRECISION,
	suspicious DOUBLE PRECISION NOT NULL,
	country TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS request_log_ts_idx ON request_log(ts_ms, id)`,
	}
}

// OpenSQL opens driver ("sqlite" or "pgx") and creates the schema if it is
// missing.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == KindSQLite {
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
			dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dsn)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == KindSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	for _, stmt := range schema(driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", driver, err)
		}
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders into $N for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != KindPgx {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Insert(ctx context.Context, ev reqlog.LogEvent) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
INSERT INTO request_log(ip, ts_ms, latitude, longitude, server_latitude, server_longitude, suspicious, country)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`),
		ev.IP, toMillis(ev.Timestamp), ev.ClientLat, ev.ClientLng,
		nullableFloat(ev.ServerLat), nullableFloat(ev.ServerLng), ev.Score, ev.Country,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	return id, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (reqlog.LogEvent, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+logColumns+` FROM request_log WHERE id = ?`), id)
	ev, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reqlog.LogEvent{}, ErrNotFound
	}
	if err != nil {
		return reqlog.LogEvent{}, fmt.Errorf("get log %d: %w", id, err)
	}
	return ev, nil
}

func (s *SQLStore) Range(ctx context.Context, from, to time.Time, limit int) ([]reqlog.LogEvent, error) {
	query := `SELECT ` + logColumns + ` FROM request_log WHERE ts_ms >= ? AND ts_ms <= ? ORDER BY ts_ms, id`
	args := []any{toMillis(from), toMillis(to)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []reqlog.LogEvent
	for rows.Next() {
		ev, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Extent(ctx context.Context) (from, to time.Time, ok bool, err error) {
	var lo, hi sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(ts_ms), MAX(ts_ms) FROM request_log`).Scan(&lo, &hi); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("log extent: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return fromMillis(lo.Int64), fromMillis(hi.Int64), true, nil
}

// Histogram groups in the database. Integer division truncates toward zero,
// so logs before 1970 land one bucket late; reqlog.Bucketize does not have
// that limitation.
func (s *SQLStore) Histogram(ctx context.Context, width time.Duration) ([]reqlog.TimeBucket, error) {
	w := width.Milliseconds()
	if w <= 0 {
		return nil, fmt.Errorf("invalid bucket width %s", width)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT (ts_ms / ?) * ? AS bucket, COUNT(*)
FROM request_log
GROUP BY bucket
ORDER BY bucket`), w, w)
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var buckets []reqlog.TimeBucket
	for rows.Next() {
		var start, count int64
		if err := rows.Scan(&start, &count); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, reqlog.TimeBucket{Timestamp: fromMillis(start), Count: int(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	return reqlog.FillBuckets(buckets, width), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (reqlog.LogEvent, error) {
	var (
		ev     reqlog.LogEvent
		ms     int64
		sl, sg sql.NullFloat64
	)
	if err := row.Scan(&ev.ID, &ev.IP, &ms, &ev.ClientLat, &ev.ClientLng, &sl, &sg, &ev.Score, &ev.Country); err != nil {
		return reqlog.LogEvent{}, err
	}
	ev.Timestamp = fromMillis(ms)
	if sl.Valid {
		ev.ServerLat = &sl.Float64
	}
	if sg.Valid {
		ev.ServerLng = &sg.Float64
	}
	return ev, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
