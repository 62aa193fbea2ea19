// Package prefect implements the orchestration ports against the Prefect REST API.
package prefect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/prefect-exporter/internal/domain"
	"github.com/vshulcz/prefect-exporter/internal/misc"
	"github.com/vshulcz/prefect-exporter/internal/ports"
)

const defaultRequestTimeout = 10 * time.Second

// Client opens Prefect API sessions. It holds no connections itself.
type Client struct {
	base    *url.URL
	apiKey  string
	hc      *http.Client
	log     *zap.Logger
	backoff []time.Duration
	timeout time.Duration
}

var _ ports.Connector = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithAPIKey sends the key as a bearer token (Prefect Cloud).
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// WithHTTPClient uses hc as the template for every session. Its transport is
// cloned per session when it is an *http.Transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithRequestTimeout bounds every single HTTP request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBackoff replaces the retry delays; nil disables retries.
func WithBackoff(delays []time.Duration) Option {
	return func(c *Client) { c.backoff = delays }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New parses the API base URL (e.g. http://127.0.0.1:4200/api) and returns a Client.
func New(apiURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(normalizeBase(apiURL))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("api url %q has no host", apiURL)
	}
	c := &Client{
		base:    u,
		hc:      &http.Client{},
		log:     zap.NewNop(),
		backoff: misc.DefaultBackoff,
		timeout: defaultRequestTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func normalizeBase(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	return "http://" + strings.TrimRight(s, "/")
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// Connect opens a session and checks the API health endpoint. The session is
// closed again when the check fails.
func (c *Client) Connect(ctx context.Context) (ports.Session, error) {
	s := c.newSession()
	if err := s.health(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return s, nil
}

func (c *Client) newSession() *Session {
	hc := *c.hc
	hc.Timeout = c.timeout

	var owned *http.Transport
	switch tr := c.hc.Transport.(type) {
	case nil:
		if dt, ok := http.DefaultTransport.(*http.Transport); ok {
			owned = dt.Clone()
		}
	case *http.Transport:
		owned = tr.Clone()
	}
	if owned != nil {
		hc.Transport = owned
	}
	return &Session{client: c, hc: &hc, transport: owned}
}

// StatusError is returned for any non-200 API response.
type StatusError struct {
	Path string
	Body string
	Code int
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("prefect api %s: status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("prefect api %s: status %d: %s", e.Path, e.Code, e.Body)
}

func isRetryableHTTP(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func checkHTTPStatus(path string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
