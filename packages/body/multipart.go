package body

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Part is one unit of a multipart/form-data payload.
type Part struct {
	FieldName   string
	FileName    string // empty for plain value parts
	ContentType string // optional override for file parts
	Data        []byte
}

// StringPart builds a plain value part from a resolved form field.
func StringPart(name, value string) Part {
	return Part{FieldName: name, Data: []byte(value)}
}

// FilePart builds a file part from pre-read file contents.
func FilePart(name, fileName, contentType string, data []byte) Part {
	return Part{FieldName: name, FileName: fileName, ContentType: contentType, Data: data}
}

// MultipartBody is an eagerly encoded multipart/form-data payload. Encoding
// happens once at build time so every send reuses the same bytes.
type MultipartBody struct {
	contentType string
	data        []byte
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// NewMultipart combines parts into one multipart/form-data payload. Part
// order is preserved.
func NewMultipart(parts []Part) (*MultipartBody, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for _, p := range parts {
		var w io.Writer
		var err error

		switch {
		case p.FileName == "":
			w, err = writer.CreateFormField(p.FieldName)
		case p.ContentType != "":
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
				quoteEscaper.Replace(p.FieldName), quoteEscaper.Replace(p.FileName)))
			h.Set("Content-Type", p.ContentType)
			w, err = writer.CreatePart(h)
		default:
			w, err = writer.CreateFormFile(p.FieldName, p.FileName)
		}
		if err != nil {
			return nil, fmt.Errorf("creating part %q: %w", p.FieldName, err)
		}

		if _, err := w.Write(p.Data); err != nil {
			return nil, fmt.Errorf("writing part %q: %w", p.FieldName, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return &MultipartBody{
		contentType: writer.FormDataContentType(),
		data:        buf.Bytes(),
	}, nil
}

func (b *MultipartBody) Reader() (io.Reader, error) { return bytes.NewReader(b.data), nil }
func (b *MultipartBody) ContentType() string        { return b.contentType }
func (b *MultipartBody) ContentLength() int64       { return int64(len(b.data)) }

// Bytes returns the encoded payload for inspection.
func (b *MultipartBody) Bytes() []byte { return b.data }
