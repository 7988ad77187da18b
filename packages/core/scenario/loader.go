package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileYAML struct {
	Name      string         `yaml:"name"`
	Variables map[string]any `yaml:"variables"`
	Requests  []requestYAML  `yaml:"requests"`
}

type requestYAML struct {
	Name     string         `yaml:"name"`
	Method   string         `yaml:"method"`
	URL      string         `yaml:"url"`
	Headers  []pairYAML     `yaml:"headers"`
	Query    []pairYAML     `yaml:"query"`
	Params   []paramYAML    `yaml:"params"`
	Form     map[string]any `yaml:"form"`
	Body     *bodyYAML      `yaml:"body"`
	Parts    []partYAML     `yaml:"parts"`
	Captures []captureYAML  `yaml:"captures"`
	Timeout  int            `yaml:"timeout"`
	Think    int            `yaml:"think"`
	Weight   int            `yaml:"weight"`
}

type pairYAML struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type paramYAML struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

type bodyYAML struct {
	Text     string `yaml:"text"`
	File     string `yaml:"file"`
	Bytes    string `yaml:"bytes"`
	Template string `yaml:"template"`
}

type partYAML struct {
	Name        string `yaml:"name"`
	Value       string `yaml:"value"`
	File        string `yaml:"file"`
	ContentType string `yaml:"contentType"`
}

type captureYAML struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
}

// Load reads and parses a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	file.Path = path
	file.BaseDir = filepath.Dir(path)
	cacheStaticFiles(file)
	return file, nil
}

// Parse parses scenario YAML.
func Parse(data []byte) (*File, error) {
	var raw fileYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	file := &File{
		Name:      raw.Name,
		Variables: raw.Variables,
	}

	for i := range raw.Requests {
		req, err := convertRequest(&raw.Requests[i])
		if err != nil {
			return nil, err
		}
		file.Requests = append(file.Requests, req)
	}

	if len(file.Requests) == 0 {
		return nil, fmt.Errorf("scenario declares no requests")
	}

	return file, nil
}

func convertRequest(raw *requestYAML) (*Request, error) {
	if raw.URL == "" {
		return nil, fmt.Errorf("request %q has no url", raw.Name)
	}

	method := strings.ToUpper(raw.Method)
	if method == "" {
		method = "GET"
	}

	req := &Request{
		Name:      raw.Name,
		Method:    method,
		URL:       raw.URL,
		Form:      raw.Form,
		TimeoutMs: raw.Timeout,
		ThinkMs:   raw.Think,
		Weight:    raw.Weight,
	}
	if req.Name == "" {
		req.Name = method + " " + raw.URL
	}

	for _, h := range raw.Headers {
		req.Headers = append(req.Headers, &Header{Name: h.Name, Value: h.Value})
	}
	for _, q := range raw.Query {
		req.QueryParams = append(req.QueryParams, &QueryParam{Name: q.Name, Value: q.Value})
	}
	for _, p := range raw.Params {
		req.Params = append(req.Params, &Param{Name: p.Name, Value: p.Value})
	}

	if raw.Body != nil {
		b, err := convertBody(raw.Body, req.Name)
		if err != nil {
			return nil, err
		}
		req.Body = b
	}

	for _, p := range raw.Parts {
		part, err := convertPart(&p, req.Name)
		if err != nil {
			return nil, err
		}
		req.Parts = append(req.Parts, part)
	}

	for _, c := range raw.Captures {
		capture, err := convertCapture(&c, req.Name)
		if err != nil {
			return nil, err
		}
		req.Captures = append(req.Captures, capture)
	}

	return req, nil
}

func convertBody(raw *bodyYAML, reqName string) (Body, error) {
	declared := 0
	var b Body

	if raw.Text != "" {
		declared++
		b = &StringBody{Template: raw.Text}
	}
	if raw.File != "" {
		declared++
		b = &RawFileBody{Path: raw.File}
	}
	if raw.Bytes != "" {
		declared++
		b = &ByteArrayBody{Template: raw.Bytes}
	}
	if raw.Template != "" {
		declared++
		b = NewChunkedTextBody(raw.Template)
	}

	switch declared {
	case 0:
		return nil, fmt.Errorf("request %q declares an empty body", reqName)
	case 1:
		return b, nil
	default:
		return nil, fmt.Errorf("request %q declares more than one body kind", reqName)
	}
}

func convertPart(raw *partYAML, reqName string) (*Part, error) {
	if raw.Name == "" {
		return nil, fmt.Errorf("request %q has a part without a name", reqName)
	}

	switch {
	case raw.File != "" && raw.Value != "":
		return nil, fmt.Errorf("part %q declares both value and file", raw.Name)
	case raw.File != "":
		return &Part{Kind: PartFile, Name: raw.Name, Path: raw.File, ContentType: raw.ContentType}, nil
	case raw.Value != "":
		return &Part{Kind: PartValue, Name: raw.Name, Value: raw.Value}, nil
	default:
		return nil, fmt.Errorf("part %q declares neither value nor file", raw.Name)
	}
}

func convertCapture(raw *captureYAML, reqName string) (*Capture, error) {
	capture := &Capture{Name: raw.Name, Path: raw.Path}
	if capture.Name == "" {
		return nil, fmt.Errorf("request %q has a capture without a name", reqName)
	}

	switch strings.ToLower(raw.Source) {
	case "", "body":
		capture.Source = CaptureBody
	case "header":
		capture.Source = CaptureHeader
	case "status":
		capture.Source = CaptureStatus
	default:
		return nil, fmt.Errorf("capture %q has unknown source %q", raw.Name, raw.Source)
	}

	return capture, nil
}

// cacheStaticFiles pre-reads file bodies whose paths contain no template
// expressions. Executions then reuse the bytes instead of hitting the disk
// per request.
func cacheStaticFiles(file *File) {
	for _, req := range file.Requests {
		fb, ok := req.Body.(*RawFileBody)
		if !ok || strings.Contains(fb.Path, "{{") {
			continue
		}

		path := fb.Path
		if !filepath.IsAbs(path) && file.BaseDir != "" {
			path = filepath.Join(file.BaseDir, path)
		}
		if data, err := os.ReadFile(path); err == nil {
			fb.Cached = data
		}
	}
}
