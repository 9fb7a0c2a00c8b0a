package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/apierror"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single backend call when neither the client nor
// the request sets one. Experiment generation can take minutes.
const DefaultTimeout = 300 * time.Second

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Client talks to the Subconscious AI REST backend.
type Client struct {
	BaseURL    string        // API base URL (no trailing slash).
	HTTPClient *http.Client  // Falls back to http.DefaultClient.
	Timeout    time.Duration // Per-call timeout (default DefaultTimeout).
	UserAgent  string        // Optional User-Agent header.
	Logger     *slog.Logger  // Falls back to slog.Default().
}

// New creates a Client for baseURL. A nil httpClient falls back to
// http.DefaultClient at call time.
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
		Timeout:    DefaultTimeout,
	}
}

// Request describes one backend call.
type Request struct {
	Method  string
	Path    string        // Path below BaseURL, starting with "/".
	Query   url.Values    // Optional query parameters.
	Body    any           // JSON-encoded; POST and PUT send {} when nil.
	Timeout time.Duration // Overrides Client.Timeout when positive.
}

// Get is a convenience wrapper for a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, token string) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, token)
}

// Post is a convenience wrapper for a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, token string) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, token)
}

// Put is a convenience wrapper for a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, token string) (any, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, token)
}

// Do performs the call and returns the decoded JSON body: a map, a list or
// a scalar. Backend failures come back as *apierror.Error. When ctx itself
// is cancelled the context error is returned as is; when its deadline
// expires the call fails as a Network error.
func (c *Client) Do(ctx context.Context, r Request, token string) (any, error) {
	timeout := c.Timeout
	if r.Timeout > 0 {
		timeout = r.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(callCtx, r, token)
	if err != nil {
		return nil, err
	}

	log := c.logger().With("method", r.Method, "path", r.Path, "request_id", req.Header.Get("X-Request-ID"))
	log.DebugContext(ctx, "api request")
	start := time.Now()

	resp, err := c.httpClient().Do(req) //nolint:gosec // URL is built from trusted BaseURL config.
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierror.FromContext(ctx.Err())
		}
		log.ErrorContext(ctx, "api transport error", "error", err)
		return nil, transportError(err, timeout)
	}
	defer func() { _ = resp.Body.Close() }()

	log.DebugContext(ctx, "api response", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierror.FromContext(ctx.Err())
		}
		return nil, transportError(err, timeout)
	}

	return decodeBody(body)
}

func (c *Client) newRequest(ctx context.Context, r Request, token string) (*http.Request, error) {
	u := c.BaseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil || r.Method == http.MethodPost || r.Method == http.MethodPut {
		payload := r.Body
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apierror.Newf(apierror.Validation, "encode request body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	return req, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// decodeBody parses a 2xx body. An empty body is an empty mapping.
func decodeBody(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, apierror.Newf(apierror.Unknown, "decode response: %v", err)
	}
	return v, nil
}

// statusError classifies a non-2xx response.
func statusError(resp *http.Response) *apierror.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := errorMessage(body)
	if msg == "" {
		msg = resp.Status
	}

	e := apierror.FromStatus(resp.StatusCode, msg)
	if e.Kind == apierror.RateLimit {
		e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return e
}

// errorMessage pulls a human-readable message out of an error body. JSON
// bodies are searched for "detail", "message" and "error"; FastAPI
// validation lists are joined. Non-JSON bodies are returned trimmed.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		if body[0] == '{' || body[0] == '[' {
			return ""
		}
		return string(body)
	}

	for _, key := range []string{"detail", "message", "error"} {
		if s := messageText(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

func messageText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := messageText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if s, ok := t["msg"].(string); ok {
			return s
		}
		return messageText(t["message"])
	default:
		return ""
	}
}

// transportError maps a failure without an HTTP response to Network.
func transportError(err error, timeout time.Duration) *apierror.Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return apierror.NewNetwork(fmt.Sprintf("request timed out after %ds", int(timeout.Seconds())), err)
	case isConnectError(err):
		return apierror.NewNetwork("cannot connect to API server: "+err.Error(), err)
	default:
		return apierror.NewNetwork(err.Error(), err)
	}
}

func isConnectError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// ParseRetryAfter parses the Retry-After header value as either seconds
// (integer) or an HTTP-date. Returns zero if unparseable or in the past.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
