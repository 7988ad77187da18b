package request

import (
	"strings"
	"time"

	"github.com/strafehq/strafe/packages/body"
)

// Descriptor is a fully configured outbound request, ready for the
// transport: final URI, headers (including any conditional-request
// validators), body encoding and HTTP/2 negotiation hints. One descriptor is
// produced per execution and discarded after the send.
type Descriptor struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    body.Encoder
	// Timeout is encoded for the transport to enforce; assembly itself
	// never blocks.
	Timeout time.Duration

	// Http2Enabled says the transport may use HTTP/2 at all.
	Http2Enabled bool
	// AlpnRequired says version negotiation must go through ALPN. It is
	// false only once the remote is confirmed HTTP/1.1-only.
	AlpnRequired bool
	// PriorKnowledge says the transport may skip ALPN and speak HTTP/2
	// framing immediately, set only for confirmed HTTP/2 remotes.
	PriorKnowledge bool
}

// Header returns a header value, matching the key case-insensitively.
func (d *Descriptor) Header(key string) string {
	for k, v := range d.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
