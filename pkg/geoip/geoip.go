// Package geoip fills in client coordinates and country names for request
// logs from a MaxMind database.
package geoip

import (
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/biter777/countries"
	"github.com/oschwald/maxminddb-golang"

	"github.com/sudorandom/wirv/pkg/reqlog"
	"github.com/sudorandom/wirv/pkg/utils"
)

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

type lookuper interface {
	Lookup(ip net.IP, result any) error
	Close() error
}

type Locator struct {
	db lookuper
}

// Open loads a database from a local path, or downloads and caches it when
// src is an http(s) URL.
func Open(src string) (*Locator, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		r, err := utils.Open(src, true, "[GEOIP]")
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read geoip db: %w", err)
		}
		db, err := maxminddb.FromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("parse geoip db: %w", err)
		}
		return &Locator{db: db}, nil
	}

	db, err := maxminddb.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	return &Locator{db: db}, nil
}

func (l *Locator) Close() error { return l.db.Close() }

// Enrich sets the client coordinates when the log has none (both zero) and
// the country name when it is empty. It reports whether anything changed.
func (l *Locator) Enrich(ev *reqlog.LogEvent) (bool, error) {
	needCoords := ev.ClientLat == 0 && ev.ClientLng == 0
	if !needCoords && ev.Country != "" {
		return false, nil
	}
	ip := net.ParseIP(ev.IP)
	if ip == nil {
		return false, fmt.Errorf("invalid ip %q", ev.IP)
	}

	var rec record
	if err := l.db.Lookup(ip, &rec); err != nil {
		return false, fmt.Errorf("lookup %s: %w", ev.IP, err)
	}

	changed := false
	if needCoords && (rec.Location.Latitude != 0 || rec.Location.Longitude != 0) {
		ev.ClientLat = rec.Location.Latitude
		ev.ClientLng = rec.Location.Longitude
		changed = true
	}
	if ev.Country == "" && rec.Country.ISOCode != "" {
		ev.Country = CountryName(rec.Country.ISOCode)
		changed = true
	}
	return changed, nil
}

// CountryName turns an ISO code into a short display name, falling back to
// the code itself.
func CountryName(cc string) string {
	name := countries.ByName(cc).String()
	if name == "Unknown" {
		return cc
	}
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}
