package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/strafehq/strafe/packages/body"
	"github.com/strafehq/strafe/packages/core/session"
)

// PartKind says how a declared multipart part produces its content.
type PartKind int

const (
	// PartValue sends a resolved template as a plain form field.
	PartValue PartKind = iota
	// PartFile sends the contents of a file.
	PartFile
)

// Part declares one unit of a multipart/form-data payload.
type Part struct {
	Kind        PartKind
	Name        string
	Value       string // template, PartValue only
	Path        string // template, PartFile only
	ContentType string
}

// PartError reports a part that failed to convert for an execution. It
// short-circuits the whole multipart assembly.
type PartError struct {
	Part string
	Err  error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("converting part %q: %v", e.Part, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// ToPart converts the declaration into a concrete multipart part for one
// execution. Conversion is read-only with respect to the session.
func (p *Part) ToPart(s *session.Session, baseDir string) (body.Part, error) {
	switch p.Kind {
	case PartValue:
		value, err := s.ResolveString(p.Value)
		if err != nil {
			return body.Part{}, &PartError{Part: p.Name, Err: err}
		}
		return body.StringPart(p.Name, value), nil

	case PartFile:
		path, err := s.ResolveString(p.Path)
		if err != nil {
			return body.Part{}, &PartError{Part: p.Name, Err: err}
		}
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return body.Part{}, &PartError{Part: p.Name, Err: err}
		}
		return body.FilePart(p.Name, filepath.Base(path), p.ContentType, data), nil

	default:
		return body.Part{}, &PartError{Part: p.Name, Err: fmt.Errorf("unknown part kind %d", p.Kind)}
	}
}
