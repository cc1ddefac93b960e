package memberapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"memberdesk/internal/adapters/http/perf"
	"memberdesk/internal/domain/member"
)

// DefaultSlowCallMs is the default threshold for slow remote call warnings.
const DefaultSlowCallMs = 300

// Function names understood by the remote users endpoint.
const (
	fnReadAll = "readall"
	fnRead    = "read"
	fnCreate  = "create"
	fnUpdate  = "update"
	fnDelete  = "delete"
)

// Client talks to the remote users endpoint. Every call is a single attempt;
// the caller's context is the only deadline.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	collector  *perf.Collector
	slowMs     float64
}

// NewClient creates a client for the given users endpoint URL.
// PRE: baseURL is an absolute http(s) URL, e.g. http://host/users.php
// POST: Returns a ready client; httpClient defaults to a client without timeout
func NewClient(baseURL string, httpClient *http.Client, collector *perf.Collector) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse member api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("member api url must be http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("member api url has no host: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   u,
		httpClient: httpClient,
		collector:  collector,
		slowMs:     DefaultSlowCallMs,
	}, nil
}

// SetSlowThreshold changes the duration above which calls are logged at WARN.
func (c *Client) SetSlowThreshold(ms int) {
	if ms > 0 {
		c.slowMs = float64(ms)
	}
}

// ReadAll fetches every member in server order.
func (c *Client) ReadAll(ctx context.Context) ([]member.Member, error) {
	var members []member.Member
	if err := c.do(ctx, http.MethodGet, fnReadAll, 0, nil, &members); err != nil {
		return nil, err
	}
	if members == nil {
		members = []member.Member{}
	}
	return members, nil
}

// ReadOne fetches a single member by id.
// PRE: id > 0
func (c *Client) ReadOne(ctx context.Context, id int) (member.Member, error) {
	if id <= 0 {
		return member.Member{}, member.ErrInvalidID
	}
	var m member.Member
	err := c.do(ctx, http.MethodGet, fnRead, id, nil, &m)
	return m, err
}

// Create submits a new member and returns what the server stored.
func (c *Client) Create(ctx context.Context, m member.Member) (member.Member, error) {
	var created member.Member
	err := c.do(ctx, http.MethodPost, fnCreate, 0, m, &created)
	return created, err
}

// Update replaces the member stored under id.
// PRE: id > 0
func (c *Client) Update(ctx context.Context, id int, m member.Member) (member.Member, error) {
	if id <= 0 {
		return member.Member{}, member.ErrInvalidID
	}
	var updated member.Member
	err := c.do(ctx, http.MethodPut, fnUpdate, id, m, &updated)
	return updated, err
}

// Delete removes the member stored under id and returns the removed record.
// PRE: id > 0
func (c *Client) Delete(ctx context.Context, id int) (member.Member, error) {
	if id <= 0 {
		return member.Member{}, member.ErrInvalidID
	}
	var deleted member.Member
	err := c.do(ctx, http.MethodDelete, fnDelete, id, nil, &deleted)
	return deleted, err
}

// requestURL builds the endpoint URL for a function and optional user id.
func (c *Client) requestURL(fn string, id int) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("function", fn)
	if id > 0 {
		q.Set("user", strconv.Itoa(id))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// do performs one request. body, when non-nil, is sent as JSON; out receives the decoded response.
func (c *Client) do(ctx context.Context, method, fn string, id int, body any, out any) error {
	op := "memberapi." + fn

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.requestURL(fn, id), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, 0, start)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.record(op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &RequestFailedError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &NetworkError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	return nil
}

// record logs and optionally records a call timing.
func (c *Client) record(op string, status int, start time.Time) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	if durationMs >= c.slowMs {
		slog.Warn("slow_remote_call", "op", op, "status", status, "duration_ms", durationMs)
	} else {
		slog.Debug("remote_call", "op", op, "status", status, "duration_ms", durationMs)
	}

	if c.collector != nil {
		c.collector.Record(perf.Entry{
			Kind:       perf.KindCall,
			Path:       op,
			StatusCode: status,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}
