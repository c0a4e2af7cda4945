package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/wirv/pkg/api"
	"github.com/sudorandom/wirv/pkg/store"
)

const sample = `ip address,Latitude,Longitude,Timestamp,suspicious
192.0.2.1,52.52,13.40,1704067200,0
198.51.100.7,35.68,139.69,1704070800,1
`

func newServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.OpenSQL(context.Background(), store.KindSQLite, filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	srv := httptest.NewServer(api.NewServer(st, api.DefaultServerConfig()))
	t.Cleanup(srv.Close)
	return srv, st
}

func TestSeedUploadsEveryRow(t *testing.T) {
	srv, st := newServer(t)
	var out bytes.Buffer
	s := &seeder{client: api.NewClient(srv.URL), out: &out, workers: 1, timeout: time.Second}

	n, err := s.run(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "[00000] inserted log with id: 1\n[00001] inserted log with id: 2\n", out.String())

	ev, err := st.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", ev.IP)
	assert.True(t, ev.Timestamp.Equal(time.Unix(1704070800, 0)))
	assert.True(t, ev.Suspicious())
}

func TestSeedConcurrent(t *testing.T) {
	srv, st := newServer(t)
	var b strings.Builder
	b.WriteString("ip address,Latitude,Longitude,Timestamp,suspicious\n")
	for i := 0; i < 50; i++ {
		b.WriteString("192.0.2.1,1,2,1704067200,0\n")
	}
	s := &seeder{client: api.NewClient(srv.URL), out: &bytes.Buffer{}, workers: 4}

	n, err := s.run(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	logs, err := st.Range(context.Background(), time.Unix(0, 0), time.Now(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, 50)
}

func TestSeedStopsOnServerError(t *testing.T) {
	srv, _ := newServer(t)
	bad := "ip address,Latitude,Longitude,Timestamp,suspicious\nnot-an-ip,1,2,1704067200,0\n"
	s := &seeder{client: api.NewClient(srv.URL), out: &bytes.Buffer{}, workers: 1}

	n, err := s.run(context.Background(), strings.NewReader(bad))
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestSeedRejectsBadCSV(t *testing.T) {
	s := &seeder{client: nil, out: &bytes.Buffer{}, workers: 1}
	_, err := s.run(context.Background(), strings.NewReader("ip,lat\n1,2\n"))
	assert.Error(t, err)
}
