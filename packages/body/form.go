package body

import (
	"io"
	"net/url"
	"strings"
)

// Field is one name/value pair of a form-urlencoded payload or a string part
// of a multipart payload. Order is preserved as given.
type Field struct {
	Name  string
	Value string
}

// FormBody encodes ordered fields as application/x-www-form-urlencoded.
type FormBody struct {
	encoded string
}

// NewForm encodes the fields in the order given.
func NewForm(fields []Field) *FormBody {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(f.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.Value))
	}
	return &FormBody{encoded: sb.String()}
}

func (b *FormBody) Reader() (io.Reader, error) { return strings.NewReader(b.encoded), nil }
func (b *FormBody) ContentType() string        { return "application/x-www-form-urlencoded" }
func (b *FormBody) ContentLength() int64       { return int64(len(b.encoded)) }

// Encoded returns the encoded payload for inspection.
func (b *FormBody) Encoded() string { return b.encoded }
