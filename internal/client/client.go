// Package client talks to a running `nexusnav serve` over its REST API. It
// keeps the admin session cookie in a jar and implements stats.Proxy so the
// dashboard can fall back to the server when a provider is not reachable
// directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nexusnav/nexusnav/internal/auth"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/wire"
)

const (
	// DefaultTimeout bounds one request.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is how many times an idempotent request is retried
	// after a transport failure.
	DefaultRetries = 2

	maxErrorBody = 4 << 10
)

// Client is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	log     logger.Logger
	retries uint64
	backoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTransport replaces http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetries sets how often GET requests are retried on transport errors.
func WithRetries(n int, initial time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = uint64(n)
		}
		if initial > 0 {
			c.backoff = initial
		}
	}
}

// WithSession seeds the jar with a saved session token.
func WithSession(token string) Option {
	return func(c *Client) { c.SetSession(token) }
}

// New returns a client for the server at serverURL.
func New(serverURL string, opts ...Option) (*Client, error) {
	base, err := ParseServerURL(serverURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot create cookie jar")
	}
	c := &Client{
		base:    base,
		http:    &http.Client{Jar: jar, Timeout: DefaultTimeout},
		log:     logger.Noop(),
		retries: DefaultRetries,
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParseServerURL accepts host:port or an http(s) URL and drops any path.
func ParseServerURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New(errors.ErrConfig, "Server URL is empty",
			"Pass --server or set client.server in the config file.")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Newf(errors.ErrConfig, "Invalid server URL: %s", raw)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// Server is the base URL requests go to.
func (c *Client) Server() string { return c.base.String() }

// Session returns the session token held in the jar, or "".
func (c *Client) Session() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == auth.SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// SetSession replaces the session token in the jar. "" clears it.
func (c *Client) SetSession(token string) {
	ck := &http.Cookie{Name: auth.SessionCookie, Value: token, Path: "/"}
	if token == "" {
		ck.MaxAge = -1
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{ck})
}

// SessionHeader carries the session cookie, for the websocket handshake.
func (c *Client) SessionHeader() http.Header {
	h := http.Header{}
	if tok := c.Session(); tok != "" {
		h.Set("Cookie", (&http.Cookie{Name: auth.SessionCookie, Value: tok}).String())
	}
	return h
}

// request is one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	header http.Header
	// noRetry sends a GET once. Proxy stages rely on the caller's re-poll.
	noRetry bool
}

// do sends req and decodes the envelope data into out (when non-nil).
// GETs are retried with exponential backoff on transport errors only,
// unless the request opts out.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return errors.WrapWithCode(err, errors.ErrValidation, "Cannot encode request", "")
		}
	}

	attempt := func() error {
		err := c.once(ctx, req, payload, out)
		var coded *errors.Error
		if err != nil && stderrors.As(err, &coded) && coded.Code != errors.ErrTransport {
			return backoff.Permanent(err)
		}
		return err
	}
	if req.method != http.MethodGet || req.noRetry || c.retries == 0 {
		return c.once(ctx, req, payload, out)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoff
	bo.MaxElapsedTime = 0
	notify := func(err error, wait time.Duration) {
		c.log.Debug("GET %s failed, retrying in %s: %v", req.path, wait, err)
	}
	err := backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx), notify)
	var perm *backoff.PermanentError
	if stderrors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (c *Client) once(ctx context.Context, req request, payload []byte, out interface{}) error {
	u := *c.base
	u.Path = req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrValidation, "Cannot build request", "")
	}
	hreq.Header.Set("Accept", "application/json")
	if payload != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.WrapWithCode(err, errors.ErrTransport,
			"Cannot reach "+c.base.Host,
			"Check that `nexusnav serve` is running and --server points at it.")
	}
	defer resp.Body.Close()
	c.log.Debug("%s %s -> %d (%s)", req.method, req.path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport, "Cannot read response from "+c.base.Host, "")
	}
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return statusError(resp.StatusCode, snippet(raw))
		}
		return errors.WrapWithCode(err, errors.ErrTransport, "Unexpected response from "+c.base.Host, "")
	}
	if resp.StatusCode >= 400 || !env.OK() {
		status := resp.StatusCode
		if status < 400 {
			status = env.Code
		}
		return statusError(status, env.Message)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.WrapWithCode(err, errors.ErrTransport, "Unexpected response data from "+c.base.Host, "")
	}
	return nil
}

// statusError turns an error envelope back into a coded error.
func statusError(status int, message string) error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized:
		return errors.New(errors.ErrAuth, message, "Run `nexusnav login` first.")
	case status == http.StatusNotFound:
		return errors.New(errors.ErrNotFound, message, "")
	case status == http.StatusBadGateway:
		return errors.New(errors.ErrProvider, message, "")
	case status >= 400 && status < 500:
		return errors.New(errors.ErrValidation, message, "")
	}
	return errors.New(errors.ErrServer, message, "Check the server log.")
}

func snippet(raw []byte) string {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return strings.TrimSpace(string(raw))
}
