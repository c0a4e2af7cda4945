package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"

	"github.com/sudorandom/wirv/pkg/reqlog"
)

var (
	logPrefix = []byte("log/")
	idPrefix  = []byte("id/")
	seqKey    = []byte("seq/log")
)

// BadgerStore keeps logs in an embedded badger database. Logs are keyed by
// timestamp then id so a prefix scan yields them in playback order, and an
// id index points back at the log key.
type BadgerStore struct {
	db    *badger.DB
	seq   *badger.Sequence
	cache sync.Map
}

func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence(seqKey, 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open id sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

// sortableMillis flips the sign bit so negative timestamps sort before
// positive ones under byte comparison.
func sortableMillis(ms int64) uint64 { return uint64(ms) ^ (1 << 63) }

func millisFromSortable(u uint64) int64 { return int64(u ^ (1 << 63)) }

func logKey(ms, id int64) []byte {
	key := make([]byte, len(logPrefix)+16)
	copy(key, logPrefix)
	binary.BigEndian.PutUint64(key[len(logPrefix):], sortableMillis(ms))
	binary.BigEndian.PutUint64(key[len(logPrefix)+8:], uint64(id))
	return key
}

func logKeyMillis(key []byte) int64 {
	return millisFromSortable(binary.BigEndian.Uint64(key[len(logPrefix):]))
}

func idKey(id int64) []byte {
	key := make([]byte, len(idPrefix)+8)
	copy(key, idPrefix)
	binary.BigEndian.PutUint64(key[len(idPrefix):], uint64(id))
	return key
}

func (s *BadgerStore) Insert(ctx context.Context, ev reqlog.LogEvent) (int64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	ev.ID = int64(n) + 1
	ev.Timestamp = fromMillis(toMillis(ev.Timestamp))

	val, err := sonic.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("encode log: %w", err)
	}
	key := logKey(toMillis(ev.Timestamp), ev.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return txn.Set(idKey(ev.ID), key)
	})
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	return ev.ID, nil
}

func (s *BadgerStore) Get(ctx context.Context, id int64) (reqlog.LogEvent, error) {
	if v, ok := s.cache.Load(id); ok {
		return v.(reqlog.LogEvent), nil
	}

	var ev reqlog.LogEvent
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return sonic.Unmarshal(v, &ev)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return reqlog.LogEvent{}, ErrNotFound
	}
	if err != nil {
		return reqlog.LogEvent{}, fmt.Errorf("get log %d: %w", id, err)
	}
	s.cache.Store(id, ev)
	return ev, nil
}

func (s *BadgerStore) Range(ctx context.Context, from, to time.Time, limit int) ([]reqlog.LogEvent, error) {
	start := logKey(toMillis(from), 0)
	toMs := toMillis(to)

	var out []reqlog.LogEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = logPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(start); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if logKeyMillis(item.Key()) > toMs {
				break
			}
			var ev reqlog.LogEvent
			if err := item.Value(func(v []byte) error { return sonic.Unmarshal(v, &ev) }); err != nil {
				return err
			}
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Extent(ctx context.Context) (from, to time.Time, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = logPrefix

		it := txn.NewIterator(opts)
		it.Rewind()
		if !it.Valid() {
			it.Close()
			return nil
		}
		from = fromMillis(logKeyMillis(it.Item().Key()))
		it.Close()

		opts.Reverse = true
		rit := txn.NewIterator(opts)
		defer rit.Close()
		rit.Seek(append(bytes.Clone(logPrefix), bytes.Repeat([]byte{0xff}, 16)...))
		if rit.Valid() {
			to = fromMillis(logKeyMillis(rit.Item().Key()))
			ok = true
		}
		return nil
	})
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("log extent: %w", err)
	}
	return from, to, ok, nil
}

func (s *BadgerStore) Histogram(ctx context.Context, width time.Duration) ([]reqlog.TimeBucket, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid bucket width %s", width)
	}
	var timestamps []time.Time
	err := s.ForEachKey(ctx, func(ms int64) error {
		timestamps = append(timestamps, fromMillis(ms))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reqlog.Bucketize(timestamps, width), nil
}

// ForEachKey calls fn with the timestamp of every stored log in ascending
// order without loading the log bodies.
func (s *BadgerStore) ForEachKey(ctx context.Context, fn func(ms int64) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = logPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(logKeyMillis(it.Item().Key())); err != nil {
				return err
			}
		}
		return nil
	})
}
