// Package httpio implements the Async HTTP component of spec.md §4.7: a
// singleton owning an HTTP client and a thread-safe FIFO of completions
// keyed to a protected JS callback. Requests run on their own goroutine;
// Get never calls back into JS directly — the scheduler drains
// DrainCompletions once per poll_once iteration (step 3).
//
// Grounded on the teacher's root fetch.go: the SSRF-safe dialer
// (ssrfSafeDialContext/IsPrivateIP/privateRanges) and the forbidden-header
// blocklist are carried over verbatim since a script-facing fetch() in a
// native runtime has exactly the same "don't let scripts pivot onto the
// local network" concern Workers fetch() has; the per-request
// reqID/FetchCount bookkeeping (Workers' per-isolate request budget) is
// dropped since this runtime has no per-request concept, only one script
// running for the process lifetime.
package httpio

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mystral-js/mystral/internal/core"
)

// Options mirrors the `opts` bag fetch() passes: method, headers, body,
// and redirect mode.
type Options struct {
	Method   string
	Headers  map[string]string
	Body     []byte
	Redirect string // "follow" | "manual" | "error"
}

// Client issues non-blocking HTTP requests and queues their results.
type Client struct {
	mu      sync.Mutex
	pending []completion
	cancels map[string]context.CancelFunc

	// SSRFProtected controls whether requests to private/loopback/link-local
	// addresses are rejected. Tests targeting httptest servers disable it.
	SSRFProtected bool
	Timeout       time.Duration
	MaxBytes      int64
	Transport     http.RoundTripper
}

type completion struct {
	callbackID string
	resp       core.HTTPResponse
}

// New constructs a Client with production defaults: SSRF protection on,
// a 30s timeout, and a 10MB response cap.
func New() *Client {
	c := &Client{
		SSRFProtected: true,
		Timeout:       30 * time.Second,
		MaxBytes:      10 * 1024 * 1024,
		cancels:       make(map[string]context.CancelFunc),
	}
	c.Transport = &http.Transport{DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !c.SSRFProtected {
			return (&net.Dialer{}).DialContext(ctx, network, addr)
		}
		return ssrfSafeDialContext(ctx, network, addr)
	}}
	return c
}

// Get issues an HTTP request for rawURL and queues its completion under
// callbackID once the response (or error) is available. It never blocks.
func (c *Client) Get(callbackID, rawURL string, opts Options) {
	if opts.Method == "" {
		opts.Method = "GET"
	}
	if c.SSRFProtected && isPrivateHostname(rawURL) {
		c.enqueue(completion{callbackID: callbackID, resp: core.HTTPResponse{
			URL: rawURL, Error: "fetch to private IP addresses is not allowed",
		}})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancels[callbackID] = cancel
	c.mu.Unlock()

	var bodyReader io.Reader
	if len(opts.Body) > 0 {
		bodyReader = strings.NewReader(string(opts.Body))
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, rawURL, bodyReader)
	if err != nil {
		cancel()
		c.enqueue(completion{callbackID: callbackID, resp: core.HTTPResponse{URL: rawURL, Error: err.Error()}})
		return
	}
	for k, v := range opts.Headers {
		if forbiddenHeaders[strings.ToLower(k)] {
			continue
		}
		req.Header.Set(k, v)
	}

	redirectMode := opts.Redirect
	if redirectMode == "" {
		redirectMode = "follow"
	}
	checkRedirect := c.redirectPolicy(redirectMode)

	client := &http.Client{Timeout: c.Timeout, Transport: c.Transport, CheckRedirect: checkRedirect}

	go func() {
		defer cancel()
		resp, err := client.Do(req)
		c.mu.Lock()
		delete(c.cancels, callbackID)
		c.mu.Unlock()
		if err != nil {
			msg := err.Error()
			if ctx.Err() != nil {
				msg = "The operation was aborted."
			}
			c.enqueue(completion{callbackID: callbackID, resp: core.HTTPResponse{URL: rawURL, Error: msg}})
			return
		}
		defer func() { _ = resp.Body.Close() }()

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, c.MaxBytes+1))
		if readErr != nil {
			c.enqueue(completion{callbackID: callbackID, resp: core.HTTPResponse{URL: rawURL, Error: readErr.Error()}})
			return
		}
		if int64(len(data)) > c.MaxBytes {
			data = data[:c.MaxBytes]
		}
		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		c.enqueue(completion{callbackID: callbackID, resp: core.HTTPResponse{
			OK:      resp.StatusCode >= 200 && resp.StatusCode < 300,
			Status:  resp.StatusCode,
			URL:     finalURL,
			Data:    data,
			Headers: resp.Header,
		}})
	}()
}

// Cancel aborts an in-flight request started with callbackID, if still
// running. Used to back AbortSignal-driven fetch cancellation.
func (c *Client) Cancel(callbackID string) {
	c.mu.Lock()
	cancel, ok := c.cancels[callbackID]
	delete(c.cancels, callbackID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Client) enqueue(comp completion) {
	c.mu.Lock()
	c.pending = append(c.pending, comp)
	c.mu.Unlock()
}

// HasPending reports whether any request is still in flight or its
// completion is queued but undelivered.
func (c *Client) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0 || len(c.cancels) > 0
}

// DrainCompletions invokes deliver for every queued completion, in FIFO
// order, then clears the queue. The scheduler calls this once per
// poll_once iteration (spec.md §4.5 step 3) with a deliver func that
// invokes the JS callback and then unprotects it.
func (c *Client) DrainCompletions(deliver func(callbackID string, resp core.HTTPResponse)) bool {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return false
	}
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, comp := range batch {
		deliver(comp.callbackID, comp.resp)
	}
	return true
}

func (c *Client) redirectPolicy(mode string) func(*http.Request, []*http.Request) error {
	switch mode {
	case "manual":
		return func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse }
	case "error":
		return func(req *http.Request, via []*http.Request) error {
			return fmt.Errorf("redirect mode is 'error'")
		}
	default:
		return func(req *http.Request, via []*http.Request) error {
			if len(via) >= 20 {
				return fmt.Errorf("too many redirects")
			}
			if c.SSRFProtected && isPrivateHostname(req.URL.String()) {
				return fmt.Errorf("redirect to private IP address is not allowed")
			}
			return nil
		}
	}
}

var forbiddenHeaders = map[string]bool{
	"host": true, "transfer-encoding": true, "connection": true,
	"keep-alive": true, "upgrade": true, "proxy-authorization": true,
	"proxy-connection": true, "te": true, "trailer": true,
}

func isPrivateHostname(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	hostname := u.Hostname()
	if hostname == "" {
		return true
	}
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return isPrivateIP(ip)
	}
	return false
}

func ssrfSafeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", host, err)
	}
	for _, ip := range ips {
		if !isPrivateIP(ip.IP) {
			return (&net.Dialer{}).DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
		}
	}
	return nil, fmt.Errorf("fetch to private IP addresses is not allowed")
}

var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8", "10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8",
		"169.254.0.0/16", "172.16.0.0/12", "192.0.0.0/24", "192.0.2.0/24",
		"192.168.0.0/16", "198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24",
		"240.0.0.0/4", "::1/128", "fc00::/7", "fe80::/10",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("httpio: invalid CIDR: " + cidr)
		}
		privateRanges = append(privateRanges, n)
	}
}

func isPrivateIP(ip net.IP) bool {
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
