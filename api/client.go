package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL matches the backend's default listen address and
	// context path.
	DefaultBaseURL = "http://localhost:8080/api"
	// DefaultTimeout bounds a single request, body included.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes   = 1 << 20
	headerRequest  = "X-Request-ID"
	headerAuthz    = "Authorization"
	bearerScheme   = "Bearer "
	contentTypeApp = "application/json"
)

// Session supplies credentials to a [Client] and receives the
// authentication-rejected signal.
type Session interface {
	Token() string
	HandleUnauthorized(ctx context.Context)
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Transport is
// wrapped with the bearer middleware; its Timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(ua)
	}
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	userAgent string

	mu      sync.RWMutex
	session Session
}

// New creates a Client for baseURL (for example "https://host/api").
// An empty baseURL selects [DefaultBaseURL].
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	if hc.Timeout <= 0 {
		hc.Timeout = c.timeout
	}
	hc.Transport = bearerTransport(c.currentSession, hc.Transport)
	c.http = &hc

	return c
}

// Attach binds the session that supplies tokens and handles 401s.
// Attaching nil detaches.
func (c *Client) Attach(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) currentSession() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", contentTypeApp)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeApp)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(headerRequest, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, fmt.Errorf("%w: %v", ErrTransport, err))
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp.StatusCode, raw, requestID)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func newStatusError(status int, raw []byte, requestID string) *Error {
	apiErr := &Error{Status: status, RequestID: requestID}

	var env struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &env) == nil {
		apiErr.Message = env.Message
		apiErr.Code = env.Code
	}
	return apiErr
}
