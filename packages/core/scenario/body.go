package scenario

import (
	"io"
	"regexp"

	"github.com/strafehq/strafe/packages/core/session"
)

// Body is the body declaration of a request. Exactly one variant may be
// present on a request, never together with multipart parts. The closed set
// of variants keeps the encoding dispatch exhaustive: adding a body kind
// means adding a variant here and a case to the selector.
type Body interface {
	bodyVariant()
}

// StringBody is a templated text payload resolved to a string per execution.
type StringBody struct {
	Template string
}

func (*StringBody) bodyVariant() {}

// RawFileBody is a file-backed payload. When the path is static the loader
// pre-reads the file once, so executions reuse the cached bytes instead of
// re-reading per request.
type RawFileBody struct {
	Path   string
	Cached []byte
}

func (*RawFileBody) bodyVariant() {}

// ByteArrayBody is a templated payload sent as raw bytes.
type ByteArrayBody struct {
	Template string
}

func (*ByteArrayBody) bodyVariant() {}

// ChunkedTextBody is a templated payload split into chunks once at load
// time. Static chunks are rendered exactly once; only expression chunks
// resolve per execution.
type ChunkedTextBody struct {
	Template string
	Chunks   []Chunk
}

func (*ChunkedTextBody) bodyVariant() {}

// StreamBody is a streaming payload opened per execution. It has no YAML
// form; it exists for programmatic scenarios.
type StreamBody struct {
	Open func(s *session.Session) (io.ReadCloser, error)
}

func (*StreamBody) bodyVariant() {}

// Chunk is one segment of a chunked templated body.
type Chunk struct {
	Static bool
	Text   string
}

var chunkPattern = regexp.MustCompile(`\{\{[^}]+\}\}`)

// NewChunkedTextBody splits a template into static and expression chunks.
func NewChunkedTextBody(template string) *ChunkedTextBody {
	return &ChunkedTextBody{
		Template: template,
		Chunks:   splitChunks(template),
	}
}

func splitChunks(template string) []Chunk {
	var chunks []Chunk
	last := 0
	for _, loc := range chunkPattern.FindAllStringIndex(template, -1) {
		if loc[0] > last {
			chunks = append(chunks, Chunk{Static: true, Text: template[last:loc[0]]})
		}
		chunks = append(chunks, Chunk{Text: template[loc[0]:loc[1]]})
		last = loc[1]
	}
	if last < len(template) {
		chunks = append(chunks, Chunk{Static: true, Text: template[last:]})
	}
	return chunks
}

// Render resolves the expression chunks against a session and returns the
// ordered chunk texts.
func (b *ChunkedTextBody) Render(s *session.Session) ([]string, error) {
	out := make([]string, len(b.Chunks))
	for i, c := range b.Chunks {
		if c.Static {
			out[i] = c.Text
			continue
		}
		resolved, err := s.ResolveString(c.Text)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}
