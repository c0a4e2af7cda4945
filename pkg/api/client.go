package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/sudorandom/wirv/pkg/reqlog"
)

// FetchError is returned for any failed request: transport errors, non-2xx
// statuses and undecodable bodies.
type FetchError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	http    *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchTimeline(ctx context.Context) ([]reqlog.TimeBucket, error) {
	var resp TimelineResponse
	if err := c.do(ctx, "fetch timeline", http.MethodGet, c.baseURL+PathTimeline, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Buckets, nil
}

// FetchRange returns the logs between from and to inclusive. With both zero
// the server picks its default window.
func (c *Client) FetchRange(ctx context.Context, from, to time.Time) ([]reqlog.LogEvent, error) {
	u := c.baseURL + PathRange
	if !from.IsZero() || !to.IsZero() {
		q := url.Values{}
		q.Set("from", from.UTC().Format(time.RFC3339Nano))
		q.Set("to", to.UTC().Format(time.RFC3339Nano))
		u += "?" + q.Encode()
	}
	var resp RangeResponse
	if err := c.do(ctx, "fetch range", http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

func (c *Client) CreateLog(ctx context.Context, req CreateLogRequest) (int64, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("encode log: %w", err)
	}
	var resp CreateLogResponse
	if err := c.do(ctx, "create log", http.MethodPost, c.baseURL+PathLogs, body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) GetLog(ctx context.Context, id int64) (reqlog.LogEvent, error) {
	var ev reqlog.LogEvent
	u := c.baseURL + PathLogs + strconv.FormatInt(id, 10)
	if err := c.do(ctx, "get log", http.MethodGet, u, nil, &ev); err != nil {
		return reqlog.LogEvent{}, err
	}
	return ev, nil
}

func (c *Client) do(ctx context.Context, op, method, u string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return &FetchError{Op: op, URL: u, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, URL: u, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: op, URL: u, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		msg := resp.Status
		if sonic.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
			if e.Message != "" {
				msg += ": " + e.Message
			}
		}
		return &FetchError{Op: op, URL: u, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return &FetchError{Op: op, URL: u, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
