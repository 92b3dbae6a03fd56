package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"wa-gateway/internal/domain"
)

const (
	msgHTTPError   = "server returned HTTP error code"
	msgRemoteError = "remote server error"
)

// Request describes one upstream call. A non-nil Body is sent as JSON.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   any
}

// Client performs upstream round-trips and folds every response into a
// domain.Outcome. It holds no per-call state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Client. Deadlines come from the caller's context.
func New(log *slog.Logger) *Client {
	return NewWithHTTPClient(&http.Client{}, log)
}

// NewWithHTTPClient lets tests and binaries supply their own transport.
func NewWithHTTPClient(hc *http.Client, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{httpClient: hc, log: log}
}

// Do sends req and interprets the response strictly.
func (c *Client) Do(ctx context.Context, req Request) domain.Outcome {
	return c.do(ctx, req, Interpret)
}

// DoLenient sends req and reports unparseable bodies as OK whatever the status.
func (c *Client) DoLenient(ctx context.Context, req Request) domain.Outcome {
	return c.do(ctx, req, InterpretLenient)
}

func (c *Client) do(ctx context.Context, r Request, interpret func(int, []byte) domain.Outcome) domain.Outcome {
	start := time.Now()
	c.log.Debug("upstream request", "method", r.Method, "url", r.URL)

	status, body, err := c.roundTrip(ctx, r)
	if err != nil {
		c.log.Error("upstream request failed", "method", r.Method, "url", r.URL,
			"duration_ms", time.Since(start).Milliseconds(), "err", err)
		return Failed(err)
	}

	out := interpret(status, body)
	level := slog.LevelInfo
	if !out.IsOK() {
		level = slog.LevelError
	}
	c.log.Log(ctx, level, "upstream response", "method", r.Method, "url", r.URL, "status", status,
		"duration_ms", time.Since(start).Milliseconds())
	return out
}

func (c *Client) roundTrip(ctx context.Context, r Request) (int, []byte, error) {
	var reader io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Failed is the outcome of a round-trip that produced no response.
func Failed(err error) domain.Outcome {
	return domain.Errorf("request failed: %v", err)
}

// Interpret maps an HTTP status and body onto an outcome:
// 2xx+JSON is OK with the parsed body, 2xx+other is OK with raw_response,
// non-2xx+JSON is ERR with the parsed body plus a default "error", and
// non-2xx+other is ERR with a generic error and raw_response.
func Interpret(status int, body []byte) domain.Outcome {
	parsed, ok := parseObject(body)
	switch {
	case success(status) && ok:
		return domain.OK(parsed)
	case success(status):
		return domain.OK(map[string]any{"raw_response": string(body)})
	case ok:
		return domain.ErrBody(parsed, msgHTTPError)
	default:
		return domain.Outcome{Kind: domain.OutcomeErr, Body: map[string]any{
			"error":        msgRemoteError,
			"raw_response": string(body),
		}}
	}
}

// InterpretLenient is Interpret except that an unparseable body is OK with
// raw_response even on a non-2xx status.
func InterpretLenient(status int, body []byte) domain.Outcome {
	if _, ok := parseObject(body); !ok {
		return domain.OK(map[string]any{"raw_response": string(body)})
	}
	return Interpret(status, body)
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// parseObject decodes body as a single JSON object. Numbers are kept as
// json.Number so upstream payloads pass through unchanged.
func parseObject(body []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return obj, true
}
