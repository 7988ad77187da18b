package request

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/strafehq/strafe/packages/body"
	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/core/session"
)

// configureBody picks exactly one body-encoding strategy for this execution.
// A declared body wins outright; otherwise the declared form attributes and
// multipart parts decide between multipart/form-data, form-urlencoded and no
// body at all.
func (p *Plan) configureBody(s *session.Session, b *Builder) error {
	if p.spec.Body != nil {
		return p.configureDeclaredBody(s, b)
	}

	hasParts := len(p.spec.Parts) > 0
	hasForm := p.spec.HasForm()
	multipartDeclared := strings.Contains(strings.ToLower(b.ContentType()), "multipart/form-data")

	switch {
	case hasParts || (hasForm && multipartDeclared):
		return p.configureMultipartBody(s, b)
	case hasForm:
		params, err := MergeParams(p.spec.Params, p.spec.Form, s)
		if err != nil {
			return fmt.Errorf("configuring form body for %q: %w", p.spec.Name, err)
		}
		fields := make([]body.Field, len(params))
		for i, param := range params {
			fields[i] = body.Field{Name: param.Name, Value: param.Value}
		}
		b.Body = body.NewForm(fields)
	}

	return nil
}

// configureMultipartBody merges form parameters into string parts, converts
// the declared parts, and combines everything into one multipart payload.
// String parts derived from parameters precede converted parts; the first
// part that fails to convert aborts the whole assembly.
func (p *Plan) configureMultipartBody(s *session.Session, b *Builder) error {
	params, err := MergeParams(p.spec.Params, p.spec.Form, s)
	if err != nil {
		return fmt.Errorf("configuring multipart body for %q: %w", p.spec.Name, err)
	}

	parts := make([]body.Part, 0, len(params)+len(p.spec.Parts))
	for _, param := range params {
		parts = append(parts, body.StringPart(param.Name, param.Value))
	}
	for _, decl := range p.spec.Parts {
		part, err := decl.ToPart(s, p.baseDir)
		if err != nil {
			return fmt.Errorf("configuring multipart body for %q: %w", p.spec.Name, err)
		}
		parts = append(parts, part)
	}

	mp, err := body.NewMultipart(parts)
	if err != nil {
		return fmt.Errorf("configuring multipart body for %q: %w", p.spec.Name, err)
	}
	b.Body = mp
	return nil
}

func (p *Plan) configureDeclaredBody(s *session.Session, b *Builder) error {
	switch decl := p.spec.Body.(type) {
	case *scenario.StringBody:
		text, err := s.ResolveString(decl.Template)
		if err != nil {
			return fmt.Errorf("resolving body for %q: %w", p.spec.Name, err)
		}
		b.Body = body.NewString(text)

	case *scenario.RawFileBody:
		path, err := s.ResolveString(decl.Path)
		if err != nil {
			return fmt.Errorf("resolving body file for %q: %w", p.spec.Name, err)
		}
		if decl.Cached != nil {
			b.Body = body.NewBytesTagged(path, decl.Cached)
			return nil
		}
		if !filepath.IsAbs(path) && p.baseDir != "" {
			path = filepath.Join(p.baseDir, path)
		}
		b.Body = body.NewFile(path)

	case *scenario.ByteArrayBody:
		data, err := s.ResolveBytes(decl.Template)
		if err != nil {
			return fmt.Errorf("resolving body bytes for %q: %w", p.spec.Name, err)
		}
		b.Body = body.NewBytes(data)

	case *scenario.ChunkedTextBody:
		chunks, err := decl.Render(s)
		if err != nil {
			return fmt.Errorf("resolving body template for %q: %w", p.spec.Name, err)
		}
		b.Body = body.NewChunked(chunks)

	case *scenario.StreamBody:
		rc, err := decl.Open(s)
		if err != nil {
			return fmt.Errorf("opening body stream for %q: %w", p.spec.Name, err)
		}
		b.Body = body.NewStream(rc)

	default:
		return fmt.Errorf("request %q: unsupported body declaration %T", p.spec.Name, p.spec.Body)
	}

	return nil
}
