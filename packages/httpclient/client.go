// Package httpclient materializes assembled request descriptors onto the
// wire. It owns transport selection for the HTTP/2 negotiation hints a
// descriptor carries and feeds observed protocol facts back into the shared
// capability and validator caches.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/strafehq/strafe/packages/cache"
	"github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/request"
)

const (
	// DefaultTimeout is the fallback request timeout when a descriptor
	// carries none.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow.
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConnsPerHost keeps connections warm per remote, which
	// matters under load.
	DefaultMaxIdleConnsPerHost = 100
	// DefaultIdleConnTimeout is how long idle connections stay pooled.
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client sends assembled descriptors. It keeps one underlying client per
// negotiation strategy so a descriptor's HTTP/2 hints map directly onto a
// transport.
type Client struct {
	timeout          time.Duration
	followRedirect   bool
	maxRedirects     int
	validateSSL      bool
	proxyURL         string
	defaultHeaders   map[string]string
	caps             *cache.Http2Cache
	validators       *cache.ValidatorCache
	recordValidators bool

	h1   *http.Client // HTTP/1.1 only
	alpn *http.Client // version negotiated via ALPN
	h2   *http.Client // HTTP/2 prior knowledge over TLS
	h2c  *http.Client // HTTP/2 prior knowledge, cleartext
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the fallback request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithFollowRedirects enables or disables redirect following.
func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

// WithMaxRedirects caps how many redirects are followed.
func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

// WithValidateSSL enables or disables TLS certificate validation.
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy routes requests through a proxy URL.
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithDefaultHeaders sets headers applied to every request before the
// descriptor's own.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithCapabilityCache records observed HTTP versions per remote into the
// given cache.
func WithCapabilityCache(caps *cache.Http2Cache) ClientOption {
	return func(c *Client) {
		c.caps = caps
	}
}

// WithValidatorCache records response validators (ETag / Last-Modified) into
// the given cache.
func WithValidatorCache(validators *cache.ValidatorCache) ClientOption {
	return func(c *Client) {
		c.validators = validators
		c.recordValidators = true
	}
}

// FromConfig derives client options from the protocol configuration.
func FromConfig(cfg *config.Config) []ClientOption {
	return []ClientOption{
		WithTimeout(cfg.RequestTimeout()),
		WithFollowRedirects(cfg.GetFollowRedirects()),
		WithMaxRedirects(cfg.MaxRedirects),
		WithValidateSSL(cfg.GetValidateSSL()),
		WithProxy(cfg.Proxy),
		WithDefaultHeaders(cfg.Headers),
	}
}

// NewClient creates a client with its per-strategy transports.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: !c.validateSSL}

	var proxy func(*http.Request) (*neturl.URL, error)
	if c.proxyURL != "" {
		if u, err := neturl.Parse(c.proxyURL); err == nil {
			proxy = http.ProxyURL(u)
		}
	}

	h1Transport := &http.Transport{
		Proxy:               proxy,
		TLSClientConfig:     tlsCfg.Clone(),
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		// Empty TLSNextProto keeps the transport off HTTP/2 entirely.
		TLSNextProto: make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	alpnTransport := &http.Transport{
		Proxy:               proxy,
		TLSClientConfig:     tlsCfg.Clone(),
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	h2Transport := &http2.Transport{
		TLSClientConfig: tlsCfg.Clone(),
	}

	h2cTransport := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	c.h1 = &http.Client{Transport: h1Transport, CheckRedirect: redirectPolicy}
	c.alpn = &http.Client{Transport: alpnTransport, CheckRedirect: redirectPolicy}
	c.h2 = &http.Client{Transport: h2Transport, CheckRedirect: redirectPolicy}
	c.h2c = &http.Client{Transport: h2cTransport, CheckRedirect: redirectPolicy}

	return c
}

// Do sends a descriptor, enforcing its encoded timeout.
func (c *Client) Do(d *request.Descriptor) (*Response, error) {
	ctx := context.Background()
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.DoContext(ctx, d)
}

// DoContext sends a descriptor under the caller's context.
func (c *Client) DoContext(ctx context.Context, d *request.Descriptor) (*Response, error) {
	var bodyReader io.Reader
	if d.Body != nil {
		r, err := d.Body.Reader()
		if err != nil {
			return nil, fmt.Errorf("preparing body: %w", err)
		}
		bodyReader = r
	}

	httpReq, err := http.NewRequestWithContext(ctx, d.Method, d.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range d.Headers {
		httpReq.Header.Set(k, v)
	}
	if d.Body != nil {
		if ct := d.Body.ContentType(); ct != "" {
			httpReq.Header.Set("Content-Type", ct)
		}
		if n := d.Body.ContentLength(); n >= 0 {
			httpReq.ContentLength = n
		}
	}

	start := time.Now()
	httpResp, err := c.pick(d).Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string)
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Proto:      httpResp.Proto,
		ProtoMajor: httpResp.ProtoMajor,
		Headers:    headers,
		Body:       respBody,
		Duration:   duration,
	}

	c.record(d, resp)
	return resp, nil
}

// pick maps the descriptor's negotiation hints onto a transport.
func (c *Client) pick(d *request.Descriptor) *http.Client {
	switch {
	case !d.Http2Enabled:
		return c.h1
	case d.PriorKnowledge:
		if strings.HasPrefix(d.URL, "http://") {
			return c.h2c
		}
		return c.h2
	default:
		return c.alpn
	}
}

// record feeds protocol facts observed on the response back into the shared
// caches: the negotiated HTTP version per remote and any revalidation
// headers per request identity. A 304 leaves existing validators untouched.
func (c *Client) record(d *request.Descriptor, resp *Response) {
	if c.caps != nil {
		if remote, ok := cache.RemoteFromURL(d.URL); ok {
			capability := cache.Http1Confirmed
			if resp.ProtoMajor == 2 {
				capability = cache.Http2Confirmed
			}
			c.caps.Record(remote, capability)
		}
	}

	if c.validators == nil || !c.recordValidators {
		return
	}
	if resp.StatusCode == http.StatusNotModified {
		return
	}

	etag := resp.Header("ETag")
	lastModified := resp.Header("Last-Modified")
	if etag == "" && lastModified == "" {
		return
	}
	c.validators.Store(
		cache.Identity{Method: d.Method, URL: d.URL},
		cache.Validators{ETag: etag, LastModified: lastModified},
	)
}
