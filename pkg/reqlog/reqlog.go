// Package reqlog holds the request-log records replayed on the globe and the
// fixed-width histogram buckets summarising them.
package reqlog

import (
	"time"

	"github.com/sudorandom/wirv/pkg/geo"
)

// DefaultServer is used for events that carry no server coordinates.
var DefaultServer = geo.Location{Lat: 37.7749, Lng: -122.4194}

type LogEvent struct {
	ID        int64     `json:"id"`
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
	ClientLat float64   `json:"latitude"`
	ClientLng float64   `json:"longitude"`
	ServerLat *float64  `json:"server_latitude,omitempty"`
	ServerLng *float64  `json:"server_longitude,omitempty"`
	// Score is the suspicion score in [0,1] assigned at ingest.
	Score   float64 `json:"suspicious"`
	Country string  `json:"country,omitempty"`
}

// Suspicious reports whether the event should be drawn with emphasis. Any
// non-zero score counts.
func (e LogEvent) Suspicious() bool { return e.Score > 0 }

func (e LogEvent) Client() geo.Location {
	return geo.Location{Lat: e.ClientLat, Lng: e.ClientLng}
}

// Server returns the event's server location, falling back to def when
// either coordinate is missing or both are zero.
func (e LogEvent) Server(def geo.Location) geo.Location {
	if e.ServerLat == nil || e.ServerLng == nil {
		return def
	}
	if *e.ServerLat == 0 && *e.ServerLng == 0 {
		return def
	}
	return geo.Location{Lat: *e.ServerLat, Lng: *e.ServerLng}
}

type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// Sorted reports whether events are non-decreasing in timestamp.
func Sorted(events []LogEvent) bool {
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			return false
		}
	}
	return true
}
