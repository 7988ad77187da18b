package request

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/strafehq/strafe/packages/body"
)

// Builder accumulates the outgoing request while its attributes resolve.
// It materializes into a Descriptor once all configuration hooks have run.
type Builder struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    body.Encoder
	Timeout time.Duration

	// HTTP/2 negotiation hints for the transport.
	Http2Enabled   bool
	AlpnRequired   bool
	PriorKnowledge bool
}

// NewBuilder creates a builder for a resolved method and URL.
func NewBuilder(method, rawURL string) *Builder {
	return &Builder{
		Method:  method,
		URL:     rawURL,
		Headers: make(map[string]string),
		Query:   make(map[string]string),
	}
}

// SetHeader sets a header on the builder.
func (b *Builder) SetHeader(key, value string) *Builder {
	b.Headers[key] = value
	return b
}

// SetQueryParam sets a query parameter merged into the URL at build time.
func (b *Builder) SetQueryParam(key, value string) *Builder {
	b.Query[key] = value
	return b
}

// ContentType returns the current Content-Type header, matching the key
// case-insensitively.
func (b *Builder) ContentType() string {
	for k, v := range b.Headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	return ""
}

// buildURL merges the declared query parameters into the URL.
func (b *Builder) buildURL() (string, error) {
	if len(b.Query) == 0 {
		return b.URL, nil
	}

	u, err := url.Parse(b.URL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", b.URL, err)
	}

	q := u.Query()
	for k, v := range b.Query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Descriptor materializes the builder into a transport-ready request with
// its final URI.
func (b *Builder) Descriptor() (*Descriptor, error) {
	finalURL, err := b.buildURL()
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(b.Headers))
	for k, v := range b.Headers {
		headers[k] = v
	}

	return &Descriptor{
		Method:         b.Method,
		URL:            finalURL,
		Headers:        headers,
		Body:           b.Body,
		Timeout:        b.Timeout,
		Http2Enabled:   b.Http2Enabled,
		AlpnRequired:   b.AlpnRequired,
		PriorKnowledge: b.PriorKnowledge,
	}, nil
}
