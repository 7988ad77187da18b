// Package capture pulls values out of responses into a virtual user's
// session so later requests of the same scenario can reference them.
package capture

import (
	"github.com/tidwall/gjson"

	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/core/session"
	"github.com/strafehq/strafe/packages/httpclient"
)

// Extractor evaluates capture declarations against one response.
type Extractor struct {
	response *httpclient.Response
	bodyJSON gjson.Result
}

// NewExtractor wraps a response, parsing its body once when it is JSON.
func NewExtractor(resp *httpclient.Response) *Extractor {
	e := &Extractor{response: resp}
	if resp.IsJSON() {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

// Extract evaluates one capture declaration.
func (e *Extractor) Extract(c *scenario.Capture) (any, bool) {
	switch c.Source {
	case scenario.CaptureBody:
		return e.extractFromBody(c.Path)
	case scenario.CaptureHeader:
		return e.extractFromHeader(c.Path)
	case scenario.CaptureStatus:
		return e.response.StatusCode, true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// Apply evaluates all captures of a request and stores the hits in the
// session. Misses are skipped silently; a scenario referencing a missed
// capture fails at resolution time instead.
func Apply(s *session.Session, resp *httpclient.Response, captures []*scenario.Capture) {
	if len(captures) == 0 {
		return
	}

	extractor := NewExtractor(resp)
	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			s.SetCapture(c.Name, value)
		}
	}
}
