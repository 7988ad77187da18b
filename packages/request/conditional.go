package request

import "github.com/strafehq/strafe/packages/cache"

// injectValidators attaches conditional-request headers from the response
// cache. It runs after the descriptor is materialized because the cache is
// keyed by the final URI, which is only known once query parameters are
// merged in. A cache miss is a no-op; this step never fails.
func (p *Plan) injectValidators(d *Descriptor) {
	v, ok := p.validators.Lookup(cache.Identity{Method: d.Method, URL: d.URL})
	if !ok {
		return
	}

	if v.ETag != "" {
		d.Headers["If-None-Match"] = v.ETag
	}
	if v.LastModified != "" {
		d.Headers["If-Modified-Since"] = v.LastModified
	}
}
