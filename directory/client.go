package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every directory request.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 4 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, without trailing slash.
	BaseURL string
	// APIKey is sent as a query parameter on every request when set.
	APIKey string
	// AuthParam names the query parameter carrying APIKey. Defaults to "auth".
	AuthParam string
	// Suffix is appended to every path, ".json" for the driver directory.
	Suffix     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
	// OnRequest, when set, observes every completed request.
	OnRequest func(method string, elapsed time.Duration, err error)
}

// Client performs bounded JSON requests against one directory service.
type Client struct {
	base      string
	apiKey    string
	authParam string
	suffix    string
	timeout   time.Duration
	http      *http.Client
	log       zerolog.Logger
	onRequest func(string, time.Duration, error)
}

// New builds a Client from cfg, filling defaults.
func New(cfg Config) *Client {
	c := &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		authParam: cfg.AuthParam,
		suffix:    cfg.Suffix,
		timeout:   cfg.Timeout,
		http:      cfg.HTTPClient,
		log:       cfg.Logger.With().Str("component", "directory").Logger(),
		onRequest: cfg.OnRequest,
	}
	if c.authParam == "" {
		c.authParam = "auth"
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// Get returns the JSON document at path, or nil when nothing is stored there.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	code, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound {
		return nil, nil
	}
	if code < 200 || code > 299 {
		return nil, &StatusError{Method: http.MethodGet, Path: path, Code: code}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: GET %s", ErrDecode, path)
	}
	return json.RawMessage(body), nil
}

// Post appends body to the collection at path and returns the generated key.
func (c *Client) Post(ctx context.Context, path string, body any) (string, error) {
	code, resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	if code < 200 || code > 299 {
		return "", &StatusError{Method: http.MethodPost, Path: path, Code: code}
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("%w: POST %s: %v", ErrDecode, path, err)
	}
	return out.Name, nil
}

// Patch merges partial into the document at path.
func (c *Client) Patch(ctx context.Context, path string, partial any) error {
	code, _, err := c.do(ctx, http.MethodPatch, path, partial)
	if err != nil {
		return err
	}
	if code < 200 || code > 299 {
		return &StatusError{Method: http.MethodPatch, Path: path, Code: code}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	code, body, err := c.roundTrip(ctx, method, path, payload)

	elapsed := time.Since(started)
	if c.onRequest != nil {
		c.onRequest(method, elapsed, err)
	}
	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("path", logPath(path)).
		Int("status", code).
		Dur("duration", elapsed).
		Msg("directory request")

	return code, body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.url(path), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, c.transportError(ctx, reqCtx, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, c.transportError(ctx, reqCtx, method, path, err)
	}
	return resp.StatusCode, body, nil
}

// transportError maps a failed round trip onto a failure kind. Caller
// cancellation passes through unchanged.
func (c *Client) transportError(parent, reqCtx context.Context, method, path string, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s after %s", ErrTimeout, method, path, c.timeout)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, redact(err, c.apiKey))
}

func (c *Client) url(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	u := c.base + "/" + strings.Join(segments, "/") + c.suffix
	if c.apiKey != "" {
		u += "?" + url.Values{c.authParam: []string{c.apiKey}}.Encode()
	}
	return u
}

// logPath shortens the hash segment of driver paths.
func logPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if len(p) == 64 {
			parts[i] = p[:8] + "..."
		}
	}
	return strings.Join(parts, "/")
}

func redact(err error, secret string) string {
	msg := err.Error()
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "REDACTED")
}
