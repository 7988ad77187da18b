package request

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strafehq/strafe/packages/body"
	"github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/core/session"
)

func buildFor(t *testing.T, spec *scenario.Request, opts ...PlanOption) *Builder {
	t.Helper()
	plan, err := NewPlan(spec, config.DefaultConfig(), opts...)
	require.NoError(t, err)

	b := NewBuilder(spec.Method, spec.URL)
	for _, h := range spec.Headers {
		b.SetHeader(h.Name, h.Value)
	}
	require.NoError(t, plan.configureBody(session.New(), b))
	return b
}

func TestNewPlan_BodyAndPartsRejected(t *testing.T) {
	spec := &scenario.Request{
		Name:   "upload",
		Method: "POST",
		URL:    "https://example.com/upload",
		// Both templates reference unknown expressions; the conflict must be
		// reported without attempting to resolve either.
		Body:  &scenario.StringBody{Template: "{{never_resolvable}}"},
		Parts: []*scenario.Part{{Kind: scenario.PartValue, Name: "f", Value: "{{also_unresolvable}}"}},
	}

	_, err := NewPlan(spec, config.DefaultConfig())

	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "upload", cfgErr.Request)
}

func TestConfigureBody_NoFormNoBody(t *testing.T) {
	b := buildFor(t, &scenario.Request{Name: "get", Method: "GET", URL: "https://example.com"})
	assert.Nil(t, b.Body)
}

func TestConfigureBody_FormEncodesURLEncoded(t *testing.T) {
	spec := &scenario.Request{
		Name:   "login",
		Method: "POST",
		URL:    "https://example.com/login",
		Form:   map[string]any{"user": "alice", "pass": "s3cret&more"},
	}

	b := buildFor(t, spec)

	require.NotNil(t, b.Body)
	form, ok := b.Body.(*body.FormBody)
	require.True(t, ok)
	assert.Equal(t, "application/x-www-form-urlencoded", form.ContentType())
	assert.Equal(t, "pass=s3cret%26more&user=alice", form.Encoded())
}

func TestConfigureBody_PartsSelectMultipart(t *testing.T) {
	spec := &scenario.Request{
		Name:   "upload",
		Method: "POST",
		URL:    "https://example.com/upload",
		Parts:  []*scenario.Part{{Kind: scenario.PartValue, Name: "comment", Value: "hello"}},
	}

	b := buildFor(t, spec)

	require.NotNil(t, b.Body)
	mp, ok := b.Body.(*body.MultipartBody)
	require.True(t, ok)
	assert.Contains(t, mp.ContentType(), "multipart/form-data")
	assert.Contains(t, string(mp.Bytes()), `name="comment"`)
	assert.Contains(t, string(mp.Bytes()), "hello")
}

func TestConfigureBody_FormWithMultipartHeaderSelectsMultipart(t *testing.T) {
	spec := &scenario.Request{
		Name:    "upload",
		Method:  "POST",
		URL:     "https://example.com/upload",
		Headers: []*scenario.Header{{Name: "content-type", Value: "multipart/form-data"}},
		Form:    map[string]any{"field": "value"},
	}

	b := buildFor(t, spec)

	_, ok := b.Body.(*body.MultipartBody)
	assert.True(t, ok, "a declared multipart content type promotes form attributes to multipart parts")
}

func TestConfigureBody_ParamsPrecedeDeclaredParts(t *testing.T) {
	spec := &scenario.Request{
		Name:   "upload",
		Method: "POST",
		URL:    "https://example.com/upload",
		Form:   map[string]any{"meta": "v1"},
		Parts:  []*scenario.Part{{Kind: scenario.PartValue, Name: "payload", Value: "data"}},
	}

	b := buildFor(t, spec)

	mp, ok := b.Body.(*body.MultipartBody)
	require.True(t, ok)
	encoded := string(mp.Bytes())
	assert.Less(t, strings.Index(encoded, `name="meta"`), strings.Index(encoded, `name="payload"`))
}

func TestConfigureBody_PartFailureShortCircuits(t *testing.T) {
	spec := &scenario.Request{
		Name:   "upload",
		Method: "POST",
		URL:    "https://example.com/upload",
		Parts: []*scenario.Part{
			{Kind: scenario.PartValue, Name: "ok", Value: "fine"},
			{Kind: scenario.PartFile, Name: "broken", Path: "does-not-exist.bin"},
			{Kind: scenario.PartValue, Name: "after", Value: "{{unresolvable}}"},
		},
	}

	plan, err := NewPlan(spec, config.DefaultConfig())
	require.NoError(t, err)

	b := NewBuilder("POST", spec.URL)
	err = plan.configureBody(session.New(), b)

	require.Error(t, err)
	var partErr *scenario.PartError
	require.ErrorAs(t, err, &partErr)
	assert.Equal(t, "broken", partErr.Part, "the first failing part is reported, later parts never convert")
	assert.Nil(t, b.Body)
}

func TestConfigureBody_StringBody(t *testing.T) {
	spec := &scenario.Request{
		Name:   "create",
		Method: "POST",
		URL:    "https://example.com",
		Body:   &scenario.StringBody{Template: "hello {{name}}"},
	}

	plan, err := NewPlan(spec, config.DefaultConfig())
	require.NoError(t, err)

	s := session.New()
	s.Set("name", "world")

	b := NewBuilder("POST", spec.URL)
	require.NoError(t, plan.configureBody(s, b))

	sb, ok := b.Body.(*body.StringBody)
	require.True(t, ok)
	assert.Equal(t, "hello world", sb.Text())
}

func TestConfigureBody_ByteArrayBody(t *testing.T) {
	spec := &scenario.Request{
		Name:   "raw",
		Method: "POST",
		URL:    "https://example.com",
		Body:   &scenario.ByteArrayBody{Template: "id={{id}}"},
	}

	plan, err := NewPlan(spec, config.DefaultConfig())
	require.NoError(t, err)

	s := session.New()
	s.Set("id", 7)

	b := NewBuilder("POST", spec.URL)
	require.NoError(t, plan.configureBody(s, b))

	bb, ok := b.Body.(*body.BytesBody)
	require.True(t, ok)
	assert.Equal(t, []byte("id=7"), bb.Bytes())
}

func TestConfigureBody_CachedFileBody(t *testing.T) {
	spec := &scenario.Request{
		Name:   "fixed",
		Method: "POST",
		URL:    "https://example.com",
		Body:   &scenario.RawFileBody{Path: "payload.json", Cached: []byte(`{"a":1}`)},
	}

	plan, err := NewPlan(spec, config.DefaultConfig())
	require.NoError(t, err)

	b := NewBuilder("POST", spec.URL)
	require.NoError(t, plan.configureBody(session.New(), b))

	bb, ok := b.Body.(*body.BytesBody)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"a":1}`), bb.Bytes())
	assert.Equal(t, "payload.json", bb.Tag())
}

func TestConfigureBody_TemplatedFilePathResolvesAgainstBaseDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "body-v2.txt")
	require.NoError(t, os.WriteFile(path, []byte("file content"), 0o644))

	spec := &scenario.Request{
		Name:   "dynamic",
		Method: "POST",
		URL:    "https://example.com",
		Body:   &scenario.RawFileBody{Path: "body-{{version}}.txt"},
	}

	plan, err := NewPlan(spec, config.DefaultConfig(), WithBaseDir(dir))
	require.NoError(t, err)

	s := session.New()
	s.Set("version", "v2")

	b := NewBuilder("POST", spec.URL)
	require.NoError(t, plan.configureBody(s, b))

	fb, ok := b.Body.(*body.FileBody)
	require.True(t, ok)
	assert.Equal(t, path, fb.Path())

	r, err := fb.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "file content", string(data))
}

func TestConfigureBody_ChunkedBody(t *testing.T) {
	spec := &scenario.Request{
		Name:   "tpl",
		Method: "POST",
		URL:    "https://example.com",
		Body:   scenario.NewChunkedTextBody(`{"user":"{{user}}","static":true}`),
	}

	plan, err := NewPlan(spec, config.DefaultConfig())
	require.NoError(t, err)

	s := session.New()
	s.Set("user", "bob")

	b := NewBuilder("POST", spec.URL)
	require.NoError(t, plan.configureBody(s, b))

	cb, ok := b.Body.(*body.ChunkedBody)
	require.True(t, ok)

	r, err := cb.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, `{"user":"bob","static":true}`, string(data))
}

func TestConfigureBody_StreamBody(t *testing.T) {
	spec := &scenario.Request{
		Name:   "stream",
		Method: "POST",
		URL:    "https://example.com",
		Body: &scenario.StreamBody{
			Open: func(*session.Session) (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader("streamed")), nil
			},
		},
	}

	plan, err := NewPlan(spec, config.DefaultConfig())
	require.NoError(t, err)

	b := NewBuilder("POST", spec.URL)
	require.NoError(t, plan.configureBody(session.New(), b))

	sb, ok := b.Body.(*body.StreamBody)
	require.True(t, ok)
	assert.Equal(t, int64(-1), sb.ContentLength())

	r, err := sb.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(data))
}
