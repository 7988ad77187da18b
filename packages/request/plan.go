// Package request assembles fully configured outbound requests from the
// declarative, possibly templated attributes a scenario declares. A Plan is
// created once per request statement when the scenario loads; every virtual
// user execution then resolves the plan against its own session to produce a
// transport-ready Descriptor.
package request

import (
	"fmt"
	"time"

	"github.com/strafehq/strafe/packages/cache"
	"github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/core/session"
)

// Plan is the reusable assembly pipeline for one request statement.
type Plan struct {
	spec       *scenario.Request
	cfg        *config.Config
	baseDir    string
	caps       *cache.Http2Cache
	validators *cache.ValidatorCache
}

// PlanOption configures a Plan.
type PlanOption func(*Plan)

// WithBaseDir sets the directory relative file references resolve against.
func WithBaseDir(dir string) PlanOption {
	return func(p *Plan) {
		p.baseDir = dir
	}
}

// WithCapabilityCache shares an HTTP/2 capability cache across plans.
func WithCapabilityCache(c *cache.Http2Cache) PlanOption {
	return func(p *Plan) {
		p.caps = c
	}
}

// WithValidatorCache shares a response validator cache across plans.
func WithValidatorCache(c *cache.ValidatorCache) PlanOption {
	return func(p *Plan) {
		p.validators = c
	}
}

// NewPlan validates the request declaration and creates its assembly
// pipeline. A request declaring both a body and multipart parts is rejected
// here, once, rather than on every execution.
func NewPlan(spec *scenario.Request, cfg *config.Config, opts ...PlanOption) (*Plan, error) {
	if spec.Body != nil && len(spec.Parts) > 0 {
		return nil, &ConfigurationError{
			Request: spec.Name,
			Reason:  "body and multipart parts are mutually exclusive",
		}
	}

	p := &Plan{spec: spec, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.caps == nil {
		p.caps = cache.NewHttp2Cache()
	}
	if p.validators == nil {
		p.validators = cache.NewValidatorCache()
	}

	return p, nil
}

// Spec returns the underlying request declaration.
func (p *Plan) Spec() *scenario.Request {
	return p.spec
}

// Build assembles a descriptor for one execution. The pipeline runs in two
// phases: attributes resolve into a builder, the builder materializes into a
// descriptor with its final URI, and only then are conditional-request
// validators injected, since the cache is keyed by the resolved identity.
func (p *Plan) Build(s *session.Session) (*Descriptor, error) {
	b, err := p.baseBuilder(s)
	if err != nil {
		return nil, err
	}

	if err := p.configureBody(s, b); err != nil {
		return nil, err
	}
	p.negotiate(b)

	d, err := b.Descriptor()
	if err != nil {
		return nil, err
	}

	if p.cfg.RequestCaching {
		p.injectValidators(d)
	}

	return d, nil
}

func (p *Plan) baseBuilder(s *session.Session) (*Builder, error) {
	resolvedURL, err := s.ResolveString(p.spec.URL)
	if err != nil {
		return nil, fmt.Errorf("resolving url for %q: %w", p.spec.Name, err)
	}

	b := NewBuilder(p.spec.Method, resolvedURL)

	for _, h := range p.spec.Headers {
		value, err := s.ResolveString(h.Value)
		if err != nil {
			return nil, fmt.Errorf("resolving header %q for %q: %w", h.Name, p.spec.Name, err)
		}
		b.SetHeader(h.Name, value)
	}

	for _, q := range p.spec.QueryParams {
		value, err := s.ResolveString(q.Value)
		if err != nil {
			return nil, fmt.Errorf("resolving query param %q for %q: %w", q.Name, p.spec.Name, err)
		}
		b.SetQueryParam(q.Name, value)
	}

	b.Timeout = p.timeout()
	return b, nil
}

// timeout picks the per-request override when declared, otherwise the
// protocol-wide default.
func (p *Plan) timeout() time.Duration {
	if p.spec.TimeoutMs > 0 {
		return time.Duration(p.spec.TimeoutMs) * time.Millisecond
	}
	return p.cfg.RequestTimeout()
}
