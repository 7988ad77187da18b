package httpclient

import (
	"strings"
	"time"
)

// Response is the transport's view of an HTTP response: enough for metrics,
// captures and cache write-back, with the body fully read.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	ProtoMajor int
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// Header returns a header value, matching the key case-insensitively.
func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

// IsJSON reports whether the response body is JSON.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NotModified reports a 304 revalidation hit.
func (r *Response) NotModified() bool {
	return r.StatusCode == 304
}

// DurationMs returns the elapsed time in milliseconds.
func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
