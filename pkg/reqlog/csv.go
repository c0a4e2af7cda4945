package reqlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSVRecord is one row of a request-log export.
type CSVRecord struct {
	IP        string
	Timestamp time.Time
	Lat, Lng  float64
	Score     float64
}

var requiredColumns = []string{"ip address", "Latitude", "Longitude", "Timestamp", "suspicious"}

// CSVReader reads request-log exports with a header row naming at least
// "ip address", "Latitude", "Longitude", "Timestamp" (unix seconds) and
// "suspicious". Column order is free.
type CSVReader struct {
	r   *csv.Reader
	idx map[string]int
}

func NewCSVReader(r io.Reader) (*CSVReader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	return &CSVReader{r: cr, idx: idx}, nil
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (c *CSVReader) Next() (CSVRecord, error) {
	rec, err := c.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return CSVRecord{}, io.EOF
		}
		return CSVRecord{}, err
	}
	field := func(name string) string { return strings.TrimSpace(rec[c.idx[name]]) }

	lat, err := strconv.ParseFloat(field("Latitude"), 64)
	if err != nil {
		return CSVRecord{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(field("Longitude"), 64)
	if err != nil {
		return CSVRecord{}, fmt.Errorf("longitude: %w", err)
	}
	unix, err := strconv.ParseInt(field("Timestamp"), 10, 64)
	if err != nil {
		return CSVRecord{}, fmt.Errorf("timestamp: %w", err)
	}
	score, err := strconv.ParseFloat(field("suspicious"), 64)
	if err != nil {
		return CSVRecord{}, fmt.Errorf("suspicious: %w", err)
	}
	return CSVRecord{
		IP:        field("ip address"),
		Timestamp: time.Unix(unix, 0).UTC(),
		Lat:       lat,
		Lng:       lng,
		Score:     score,
	}, nil
}
