// Package http provides the HTTP client shared by authorization and probing.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/PentesterFlow/routecheck/internal/errors"
	"github.com/PentesterFlow/routecheck/internal/logger"
)

// maxDrainBytes bounds how much of a response body is drained before closing.
const maxDrainBytes = 64 * 1024

// Client sends single requests with an explicit redirect policy per request.
type Client struct {
	follow     *http.Client
	noRedirect *http.Client
	userAgent  string
	headers    map[string]string
	redirects  bool
	logger     *logger.Logger
}

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxRedirects        int
	UserAgent           string
	Headers             map[string]string
	SkipTLSVerify       bool
	// FollowRedirects is the policy used when a request does not set one.
	FollowRedirects bool
	// Proxy is used for both http and https targets. When empty the
	// environment (HTTP_PROXY, HTTPS_PROXY, NO_PROXY) is consulted.
	Proxy   string
	NoProxy string
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxRedirects:        10,
		UserAgent:           "routecheck/1.0",
		SkipTLSVerify:       true,
		FollowRedirects:     true,
	}
}

// NewClient creates a client. Both redirect policies share one transport.
func NewClient(config ClientConfig, log *logger.Logger) (*Client, error) {
	if config.Proxy != "" {
		if _, err := url.Parse(config.Proxy); err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = 10
	}
	if log == nil {
		log = logger.Nop()
	}

	transport := &http.Transport{
		Proxy: proxyFunc(config.Proxy, config.NoProxy),
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	maxRedirects := config.MaxRedirects
	return &Client{
		follow: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		noRedirect: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: config.UserAgent,
		headers:   config.Headers,
		redirects: config.FollowRedirects,
		logger:    log.WithComponent("http"),
	}, nil
}

func proxyFunc(proxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if proxy == "" {
		return http.ProxyFromEnvironment
	}
	cfg := &httpproxy.Config{
		HTTPProxy:  proxy,
		HTTPSProxy: proxy,
		NoProxy:    noProxy,
	}
	fn := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

// Request describes one outgoing request.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	// Body is sent as-is. ContentType is only set when Body is non-nil.
	Body        []byte
	ContentType string
}

// Response is the part of a response the callers act on.
type Response struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Duration   time.Duration
}

type requestOptions struct {
	followRedirects *bool
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithoutRedirects returns the first response as-is, even if it is a redirect.
func WithoutRedirects() RequestOption {
	return WithRedirects(false)
}

// WithRedirects sets the redirect policy for one request.
func WithRedirects(follow bool) RequestOption {
	return func(o *requestOptions) {
		o.followRedirects = &follow
	}
}

// Do sends req. Transport failures are returned as *errors.ProbeError; any
// HTTP status, including 4xx and 5xx, is a successful response.
func (c *Client) Do(ctx context.Context, req *Request, opts ...RequestOption) (*Response, error) {
	options := requestOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	follow := c.redirects
	if options.followRedirects != nil {
		follow = *options.followRedirects
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, errors.NewParseError(req.URL, "request_creation", err)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	client := c.follow
	if !follow {
		client = c.noRedirect
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.Categorize(err, req.URL)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	result := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
		Duration:   time.Since(start),
	}
	c.logger.RequestEvent(method, req.URL, result.StatusCode, result.Duration)
	return result, nil
}

// Close closes idle connections.
func (c *Client) Close() {
	c.follow.CloseIdleConnections()
}

// JoinURL joins a base server URL and a path with exactly one slash between
// them. A query string on path is preserved.
func JoinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
