// Package scenario defines the declarative attribute model a load test is
// written in: requests with templated URLs, headers, form parameters, body
// declarations and multipart parts, resolved against a session each time a
// virtual user executes them. Scenarios load from YAML files or can be
// constructed programmatically.
package scenario

// File is a parsed scenario file.
type File struct {
	Path      string         `yaml:"-"`
	Name      string         `yaml:"name"`
	BaseDir   string         `yaml:"-"`
	Variables map[string]any `yaml:"variables"`
	Requests  []*Request     `yaml:"requests"`
}

// Request declares one request statement. All string attributes may contain
// {{expr}} placeholders resolved per execution.
type Request struct {
	Name        string
	Method      string
	URL         string
	Headers     []*Header
	QueryParams []*QueryParam
	// Params are the explicitly declared form parameters, in declaration
	// order. A value may be a single template or a list of templates.
	Params []*Param
	// Form is the generic form map; sequence values expand to one
	// parameter entry per element.
	Form map[string]any
	// Body is the declared body, nil when none. Mutually exclusive with
	// Parts; the exclusivity is enforced when the request plan is built.
	Body     Body
	Parts    []*Part
	Captures []*Capture
	// TimeoutMs overrides the protocol-wide request timeout when positive.
	TimeoutMs int
	ThinkMs   int
	Weight    int
}

// Header is one declared header, value templated.
type Header struct {
	Name  string
	Value string
}

// QueryParam is one declared query parameter, value templated.
type QueryParam struct {
	Name  string
	Value string
}

// Param is one explicitly declared form parameter. Value is a string
// template or a list of templates.
type Param struct {
	Name  string
	Value any
}

// Capture declares a value to pull from the response into the session.
type Capture struct {
	Name   string
	Source CaptureSource
	Path   string
}

// CaptureSource says where a captured value comes from.
type CaptureSource int

const (
	CaptureBody CaptureSource = iota
	CaptureHeader
	CaptureStatus
)

func (s CaptureSource) String() string {
	switch s {
	case CaptureBody:
		return "body"
	case CaptureHeader:
		return "header"
	case CaptureStatus:
		return "status"
	default:
		return "unknown"
	}
}

// HasForm reports whether the request declares any form input.
func (r *Request) HasForm() bool {
	return len(r.Params) > 0 || len(r.Form) > 0
}
