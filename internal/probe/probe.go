package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single reachability probe.
const DefaultTimeout = 5 * time.Second

// ProbeError represents a failed probe with categorized failure reason.
type ProbeError struct {
	URL    string
	Reason FailReason
	Cause  error
}

// FailReason categorizes why a probe failed.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailDNS
	FailTLS
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "request timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailDNS:
		return "name resolution failed"
	case FailTLS:
		return "TLS handshake failed"
	default:
		return "probe failed"
	}
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%v)", e.Reason, e.Cause)
	}
	return e.Reason.String()
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Prober checks whether a URL answers at all.
type Prober interface {
	Probe(ctx context.Context, url string) (time.Duration, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, url string) (time.Duration, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, url string) (time.Duration, error) {
	return f(ctx, url)
}

// HTTPProber issues a GET and treats any completed HTTP exchange as reachable.
// The status code and body are ignored: a 500 counts as up.
type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProber returns a prober with the given per-request timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProber{
		Client: &http.Client{
			// Redirects are not followed; a 3xx already proves reachability.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		Timeout: timeout,
	}
}

// Probe performs the GET and returns the time until response headers arrived.
func (p *HTTPProber) Probe(ctx context.Context, url string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &ProbeError{URL: url, Reason: FailUnknown, Cause: err}
	}
	req.Header.Set("Cache-Control", "no-store")

	start := time.Now()
	resp, err := p.Client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, categorizeProbeError(url, err)
	}
	_ = resp.Body.Close()
	return latency, nil
}

// categorizeProbeError converts a transport error into a ProbeError with
// a categorized failure reason.
func categorizeProbeError(url string, err error) *ProbeError {
	if err == nil {
		return nil
	}

	probeErr := &ProbeError{URL: url, Reason: FailUnknown, Cause: err}
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		probeErr.Reason = FailTimeout
	case strings.Contains(errStr, "connection refused"):
		probeErr.Reason = FailRefused
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"),
		strings.Contains(errStr, "host is down"):
		probeErr.Reason = FailUnreachable
	case strings.Contains(errStr, "no such host"), strings.Contains(errStr, "server misbehaving"):
		probeErr.Reason = FailDNS
	case strings.Contains(errStr, "tls:"), strings.Contains(errStr, "x509:"):
		probeErr.Reason = FailTLS
	}
	return probeErr
}
