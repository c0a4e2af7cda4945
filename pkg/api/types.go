// Package api is the HTTP surface of the request-log service: the server
// that stores and serves logs, and the client the viewer and seeder use to
// talk to it.
package api

import (
	"github.com/sudorandom/wirv/pkg/reqlog"
)

const (
	PathLogs     = "/api/request_log/"
	PathRange    = "/api/request_log/range"
	PathTimeline = "/api/request_log/timeline"
	PathHealth   = "/api/health/"
)

// CreateLogRequest is the body of POST /api/request_log/. Timestamp must be
// RFC 3339 with an explicit offset.
type CreateLogRequest struct {
	IP        string   `json:"ip"`
	Timestamp string   `json:"timestamp"`
	Latitude  *float64 `json:"latitude,omitempty"`
	// Lantitude is the spelling older clients send.
	Lantitude       *float64 `json:"lantitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	ServerLatitude  *float64 `json:"server_latitude,omitempty"`
	ServerLongitude *float64 `json:"server_longitude,omitempty"`
	Suspicious      float64  `json:"suspicious"`
}

type CreateLogResponse struct {
	ID int64 `json:"id"`
}

type RangeResponse struct {
	Logs []reqlog.LogEvent `json:"logs"`
}

type TimelineResponse struct {
	Buckets []reqlog.TimeBucket `json:"buckets"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
