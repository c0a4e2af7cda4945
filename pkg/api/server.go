package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sudorandom/wirv/pkg/reqlog"
	"github.com/sudorandom/wirv/pkg/store"
)

const maxBodyBytes = 1 << 20

// Enricher fills in whatever it can derive from a log's IP address.
type Enricher interface {
	Enrich(ev *reqlog.LogEvent) (bool, error)
}

type ServerConfig struct {
	// BucketWidth is the histogram bucket size served by the timeline.
	BucketWidth time.Duration
	// MaxRangeLogs caps how many logs one range query returns; 0 means no
	// cap.
	MaxRangeLogs int
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{BucketWidth: time.Hour, MaxRangeLogs: 50000}
}

type Server struct {
	store    store.Store
	cfg      ServerConfig
	enricher Enricher
	mux      *http.ServeMux
}

type ServerOption func(*Server)

func WithEnricher(e Enricher) ServerOption {
	return func(s *Server) { s.enricher = e }
}

func NewServer(st store.Store, cfg ServerConfig, opts ...ServerOption) *Server {
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = time.Hour
	}
	s := &Server{store: st, cfg: cfg, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("POST /api/request_log/{$}", s.handleCreate)
	s.handle("GET /api/request_log/{$}", s.handleList)
	s.handle("GET /api/request_log/range", s.handleRange)
	s.handle("GET /api/request_log/timeline", s.handleTimeline)
	s.handle("GET /api/request_log/{id}", s.handleGet)
	s.handle("GET /api/health/{$}", s.handleHealth)
	s.handle("GET /api/health", s.handleHealth)
	s.handle("GET /{$}", s.handleIndex)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// handle registers h under pattern with request ids, access logging and
// per-route metrics.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(pattern).Observe(elapsed.Seconds())
		log.Printf("[API] %s %s %d %s id=%s", r.Method, r.URL.RequestURI(), rec.status, elapsed.Round(time.Microsecond), id)
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeInvalid(w, "could not read request body")
		return
	}
	var req CreateLogRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeInvalid(w, "invalid json body")
		return
	}
	ev, err := req.toEvent()
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	if s.enricher != nil {
		if _, err := s.enricher.Enrich(&ev); err != nil {
			log.Printf("[API] GeoIP lookup failed for %s: %v", ev.IP, err)
		}
	}

	id, err := s.store.Insert(r.Context(), ev)
	if err != nil {
		log.Printf("[API] Failed to store log: %v", err)
		writeError(w, err)
		return
	}
	logsIngestedTotal.WithLabelValues(strconv.FormatBool(ev.Suspicious())).Inc()
	writeJSON(w, http.StatusOK, CreateLogResponse{ID: id})
}

func (req CreateLogRequest) toEvent() (reqlog.LogEvent, error) {
	addr, err := netip.ParseAddr(req.IP)
	if err != nil {
		return reqlog.LogEvent{}, errors.New("invalid ip address")
	}
	ts, err := time.Parse(time.RFC3339Nano, req.Timestamp)
	if err != nil {
		return reqlog.LogEvent{}, errors.New("timestamp must be RFC 3339 with a timezone")
	}
	if req.Suspicious < 0 || req.Suspicious > 1 {
		return reqlog.LogEvent{}, errors.New("suspicious must be in range [0, 1]")
	}

	ev := reqlog.LogEvent{
		IP:        addr.String(),
		Timestamp: ts.UTC(),
		Score:     req.Suspicious,
		ServerLat: req.ServerLatitude,
		ServerLng: req.ServerLongitude,
	}
	switch {
	case req.Latitude != nil:
		ev.ClientLat = *req.Latitude
	case req.Lantitude != nil:
		ev.ClientLat = *req.Lantitude
	}
	if req.Longitude != nil {
		ev.ClientLng = *req.Longitude
	}
	return ev, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeInvalid(w, "id must be integer")
		return
	}
	ev, err := s.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[API] Failed to load log %d: %v", id, err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleList serves GET /api/request_log/?from&to where both bounds are
// required.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("from") {
		writeInvalid(w, "missing 'from' parameter")
		return
	}
	if !q.Has("to") {
		writeInvalid(w, "missing 'to' parameter")
		return
	}
	s.handleRange(w, r)
}

// handleRange serves the logs between from and to inclusive. With neither
// bound it serves everything stored, up to MaxRangeLogs.
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var from, to time.Time
	switch {
	case !q.Has("from") && !q.Has("to"):
		lo, hi, ok, err := s.store.Extent(ctx)
		if err != nil {
			log.Printf("[API] Failed to read log extent: %v", err)
			writeError(w, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, RangeResponse{Logs: []reqlog.LogEvent{}})
			return
		}
		from, to = lo, hi
	case q.Has("from") && q.Has("to"):
		var err error
		if from, err = parseTime(q.Get("from")); err != nil {
			writeInvalid(w, "expected datetime in isoformat")
			return
		}
		if to, err = parseTime(q.Get("to")); err != nil {
			writeInvalid(w, "expected datetime in isoformat")
			return
		}
		if from.After(to) {
			writeInvalid(w, "'from' must not be after 'to'")
			return
		}
	default:
		writeInvalid(w, "'from' and 'to' must be given together")
		return
	}

	logs, err := s.store.Range(ctx, from, to, s.cfg.MaxRangeLogs)
	if err != nil {
		log.Printf("[API] Range query failed: %v", err)
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []reqlog.LogEvent{}
	}
	if s.cfg.MaxRangeLogs > 0 && len(logs) == s.cfg.MaxRangeLogs {
		log.Printf("[API] Range %s - %s truncated to %d logs",
			from.Format(time.RFC3339), to.Format(time.RFC3339), len(logs))
	}
	rangeLogsReturned.Observe(float64(len(logs)))
	writeJSON(w, http.StatusOK, RangeResponse{Logs: logs})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.store.Histogram(r.Context(), s.cfg.BucketWidth)
	if err != nil {
		log.Printf("[API] Histogram query failed: %v", err)
		writeError(w, err)
		return
	}
	if buckets == nil {
		buckets = []reqlog.TimeBucket{}
	}
	writeJSON(w, http.StatusOK, TimelineResponse{Buckets: buckets})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// parseTime accepts RFC 3339, and offset-less ISO 8601 which is taken as
// UTC.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid time")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Printf("[API] Failed to write response: %v", err)
	}
}

func writeInvalid(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Message: "no such log"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
