package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 10 << 20

var (
	ErrNotFound           = errors.New("not found")
	ErrUnexpectedResponse = errors.New("unexpected response from backend")
)

// Tokens are the opaque bearer strings issued at login. They are stored and
// forwarded, never inspected.
type Tokens struct {
	Access  string
	Refresh string
	// Refreshed is set when a call obtained a new access token, so the caller
	// knows to persist it.
	Refreshed bool
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Detail string
	Fields map[string][]string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Detail returns the backend supplied detail text of err, or fallback.
func Detail(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return e
	}
	for k, raw := range fields {
		var msgs []string
		var msg string
		switch {
		case json.Unmarshal(raw, &msgs) == nil:
		case json.Unmarshal(raw, &msg) == nil:
			msgs = []string{msg}
		default:
			continue
		}
		if k == "detail" {
			e.Detail = strings.Join(msgs, " ")
			continue
		}
		if e.Fields == nil {
			e.Fields = make(map[string][]string)
		}
		e.Fields[k] = msgs
	}
	return e
}

// Client talks to the JobHack REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, rps float64, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backend url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps) + 1
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func jsonRequest(method, path string, payload interface{}) (request, error) {
	rq := request{method: method, path: path}
	if payload == nil {
		return rq, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return rq, err
	}
	rq.body = b
	rq.contentType = "application/json"
	return rq, nil
}

// send performs rq, refreshing the access token once on a 401 when a refresh
// token is available.
func (c *Client) send(ctx context.Context, tk *Tokens, rq request) ([]byte, error) {
	body, status, err := c.roundTrip(ctx, tk, rq)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && tk != nil && tk.Refresh != "" {
		access, rerr := c.Refresh(ctx, tk.Refresh)
		if rerr != nil {
			c.logger.Debug().Err(rerr).Msg("token refresh failed")
			return nil, newAPIError(status, body)
		}
		tk.Access = access
		tk.Refreshed = true
		body, status, err = c.roundTrip(ctx, tk, rq)
		if err != nil {
			return nil, err
		}
	}
	if status < 200 || status > 299 {
		return nil, newAPIError(status, body)
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, tk *Tokens, rq request) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	u := *c.baseURL
	u.Path = u.Path + rq.path
	if len(rq.query) > 0 {
		u.RawQuery = rq.query.Encode()
	}
	var body io.Reader
	if rq.body != nil {
		body = bytes.NewReader(rq.body)
	}
	req, err := http.NewRequestWithContext(ctx, rq.method, u.String(), body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if rq.contentType != "" {
		req.Header.Set("Content-Type", rq.contentType)
	}
	if tk != nil && tk.Access != "" {
		req.Header.Set("Authorization", "Bearer "+tk.Access)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "%s %s", rq.method, rq.path)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s %s", rq.method, rq.path)
	}
	c.logger.Debug().
		Str("method", rq.method).
		Str("path", rq.path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend")
	return b, resp.StatusCode, nil
}

// Health checks the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.send(ctx, nil, request{method: http.MethodGet, path: "/api/health/"})
	return err
}
