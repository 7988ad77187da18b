package request

import "github.com/strafehq/strafe/packages/cache"

// negotiate decides how the transport should approach HTTP/2 for the
// builder's remote, based on what previous responses confirmed. When HTTP/2
// is disabled in the protocol config the builder passes through unchanged.
//
// ALPN stays required until the remote is confirmed HTTP/1.1-only: skipping
// it prematurely would break HTTP/1.1-only hosts, while negotiating against
// a confirmed HTTP/2 host is merely redundant. Prior knowledge (HTTP/2
// framing without negotiation) is asserted only once HTTP/2 is confirmed.
func (p *Plan) negotiate(b *Builder) {
	if !p.cfg.HTTP2 {
		return
	}

	b.Http2Enabled = true

	capability := cache.Unknown
	if remote, ok := cache.RemoteFromURL(b.URL); ok {
		capability = p.caps.Lookup(remote)
	}

	b.AlpnRequired = capability != cache.Http1Confirmed
	b.PriorKnowledge = capability == cache.Http2Confirmed
}
