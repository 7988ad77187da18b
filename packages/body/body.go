// Package body provides the body-encoding objects an assembled request
// carries to the transport. Each encoder knows how to produce a fresh reader
// over its payload and which Content-Type it implies, so the transport never
// needs to know which encoding strategy was selected.
package body

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Encoder is a request body ready to be materialized by the transport.
type Encoder interface {
	// Reader returns a reader over the encoded payload. Implementations
	// backed by in-memory data return a fresh reader on every call;
	// stream-backed bodies can be read only once.
	Reader() (io.Reader, error)
	// ContentType returns the Content-Type this encoding implies, or ""
	// when the caller's own headers should stand.
	ContentType() string
	// ContentLength returns the payload size in bytes, or -1 when unknown.
	ContentLength() int64
}

// StringBody is a resolved text payload.
type StringBody struct {
	text string
}

// NewString wraps resolved text as a request body.
func NewString(text string) *StringBody {
	return &StringBody{text: text}
}

func (b *StringBody) Reader() (io.Reader, error) { return strings.NewReader(b.text), nil }
func (b *StringBody) ContentType() string        { return "" }
func (b *StringBody) ContentLength() int64       { return int64(len(b.text)) }

// Text returns the payload for inspection.
func (b *StringBody) Text() string { return b.text }

// BytesBody is a raw byte payload, optionally tagged with the name of the
// resource the bytes came from (a pre-read file, for example).
type BytesBody struct {
	tag  string
	data []byte
}

// NewBytes wraps raw bytes as a request body.
func NewBytes(data []byte) *BytesBody {
	return &BytesBody{data: data}
}

// NewBytesTagged wraps raw bytes tagged with their source resource name.
func NewBytesTagged(tag string, data []byte) *BytesBody {
	return &BytesBody{tag: tag, data: data}
}

func (b *BytesBody) Reader() (io.Reader, error) { return bytes.NewReader(b.data), nil }
func (b *BytesBody) ContentType() string        { return "" }
func (b *BytesBody) ContentLength() int64       { return int64(len(b.data)) }

// Tag returns the source resource name, if any.
func (b *BytesBody) Tag() string { return b.tag }

// Bytes returns the payload for inspection.
func (b *BytesBody) Bytes() []byte { return b.data }

// FileBody is a file-backed payload read at send time.
type FileBody struct {
	path string
}

// NewFile wraps a resolved file path as a request body.
func NewFile(path string) *FileBody {
	return &FileBody{path: path}
}

func (b *FileBody) Reader() (io.Reader, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("opening body file: %w", err)
	}
	return f, nil
}

func (b *FileBody) ContentType() string { return "" }

func (b *FileBody) ContentLength() int64 {
	info, err := os.Stat(b.path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// Path returns the backing file path.
func (b *FileBody) Path() string { return b.path }

// ChunkedBody is an ordered sequence of resolved text chunks sent back to
// back. Pre-rendered static chunks let templated payloads avoid re-rendering
// the parts that never change.
type ChunkedBody struct {
	chunks []string
	size   int64
}

// NewChunked wraps an ordered chunk sequence as a request body.
func NewChunked(chunks []string) *ChunkedBody {
	var size int64
	for _, c := range chunks {
		size += int64(len(c))
	}
	return &ChunkedBody{chunks: chunks, size: size}
}

func (b *ChunkedBody) Reader() (io.Reader, error) {
	readers := make([]io.Reader, len(b.chunks))
	for i, c := range b.chunks {
		readers[i] = strings.NewReader(c)
	}
	return io.MultiReader(readers...), nil
}

func (b *ChunkedBody) ContentType() string  { return "" }
func (b *ChunkedBody) ContentLength() int64 { return b.size }

// Chunks returns the chunk sequence for inspection.
func (b *ChunkedBody) Chunks() []string { return b.chunks }

// StreamBody is a one-shot streaming payload of unknown length.
type StreamBody struct {
	rc io.ReadCloser
}

// NewStream wraps an opened stream as a request body. The transport closes
// the stream after the request is written.
func NewStream(rc io.ReadCloser) *StreamBody {
	return &StreamBody{rc: rc}
}

func (b *StreamBody) Reader() (io.Reader, error) { return b.rc, nil }
func (b *StreamBody) ContentType() string        { return "" }
func (b *StreamBody) ContentLength() int64       { return -1 }
