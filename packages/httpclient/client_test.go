package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strafehq/strafe/packages/cache"
	"github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/core/session"
	"github.com/strafehq/strafe/packages/request"
)

func descriptorFor(t *testing.T, spec *scenario.Request, cfg *config.Config, opts ...request.PlanOption) *request.Descriptor {
	t.Helper()
	plan, err := request.NewPlan(spec, cfg, opts...)
	require.NoError(t, err)
	d, err := plan.Build(session.New())
	require.NoError(t, err)
	return d
}

func plainConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.HTTP2 = false
	return cfg
}

func TestDo_SendsDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.PostForm.Get("user"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	d := descriptorFor(t, &scenario.Request{
		Name:   "login",
		Method: "POST",
		URL:    server.URL + "/login",
		Form:   map[string]any{"user": "alice"},
	}, plainConfig())

	client := NewClient()
	resp, err := client.Do(d)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "ok", string(resp.Body))
}

func TestDo_DescriptorTimeoutEnforced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := plainConfig()
	d := descriptorFor(t, &scenario.Request{
		Name:      "slow",
		Method:    "GET",
		URL:       server.URL,
		TimeoutMs: 50,
	}, cfg)

	client := NewClient()
	_, err := client.Do(d)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestDo_RecordsHttp1Capability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	caps := cache.NewHttp2Cache()
	client := NewClient(WithCapabilityCache(caps))

	d := descriptorFor(t, &scenario.Request{Name: "r", Method: "GET", URL: server.URL}, plainConfig())
	_, err := client.Do(d)
	require.NoError(t, err)

	remote, ok := cache.RemoteFromURL(server.URL)
	require.True(t, ok)
	assert.Equal(t, cache.Http1Confirmed, caps.Lookup(remote))
}

func TestDo_RecordsValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	validators := cache.NewValidatorCache()
	client := NewClient(WithValidatorCache(validators))

	d := descriptorFor(t, &scenario.Request{Name: "r", Method: "GET", URL: server.URL}, plainConfig())
	_, err := client.Do(d)
	require.NoError(t, err)

	v, ok := validators.Lookup(cache.Identity{Method: "GET", URL: d.URL})
	require.True(t, ok)
	assert.Equal(t, `"v1"`, v.ETag)
	assert.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", v.LastModified)
}

func TestDo_NotModifiedKeepsValidators(t *testing.T) {
	etagSeen := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		etagSeen = r.Header.Get("If-None-Match")
		if etagSeen == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	cfg := plainConfig()
	cfg.RequestCaching = true

	validators := cache.NewValidatorCache()
	client := NewClient(WithValidatorCache(validators))

	plan, err := request.NewPlan(&scenario.Request{Name: "r", Method: "GET", URL: server.URL},
		cfg, request.WithValidatorCache(validators))
	require.NoError(t, err)

	// First request has nothing cached and populates the validator cache.
	d, err := plan.Build(session.New())
	require.NoError(t, err)
	resp, err := client.Do(d)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, etagSeen)

	// Second build of the same plan injects If-None-Match; the 304 must not
	// clobber the stored validators.
	d, err = plan.Build(session.New())
	require.NoError(t, err)
	resp, err = client.Do(d)
	require.NoError(t, err)
	assert.True(t, resp.NotModified())
	assert.Equal(t, `"v1"`, etagSeen)

	v, ok := validators.Lookup(cache.Identity{Method: "GET", URL: d.URL})
	require.True(t, ok)
	assert.Equal(t, `"v1"`, v.ETag)
}

func TestDo_DefaultHeadersOverriddenByDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "per-request", r.Header.Get("X-Source"))
		assert.Equal(t, "strafe", r.Header.Get("X-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeaders(map[string]string{
		"X-Source": "default",
		"X-Agent":  "strafe",
	}))

	d := descriptorFor(t, &scenario.Request{
		Name:    "r",
		Method:  "GET",
		URL:     server.URL,
		Headers: []*scenario.Header{{Name: "X-Source", Value: "per-request"}},
	}, plainConfig())

	_, err := client.Do(d)
	require.NoError(t, err)
}

func TestDo_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	d := descriptorFor(t, &scenario.Request{Name: "r", Method: "GET", URL: server.URL}, plainConfig())

	resp, err := client.Do(d)

	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestPick(t *testing.T) {
	client := NewClient()

	tests := []struct {
		name string
		d    *request.Descriptor
		want *http.Client
	}{
		{
			name: "http2 disabled uses the h1-only client",
			d:    &request.Descriptor{URL: "https://example.com"},
			want: client.h1,
		},
		{
			name: "enabled without prior knowledge negotiates via ALPN",
			d:    &request.Descriptor{URL: "https://example.com", Http2Enabled: true, AlpnRequired: true},
			want: client.alpn,
		},
		{
			name: "prior knowledge over TLS",
			d:    &request.Descriptor{URL: "https://example.com", Http2Enabled: true, PriorKnowledge: true},
			want: client.h2,
		},
		{
			name: "prior knowledge over cleartext uses h2c",
			d:    &request.Descriptor{URL: "http://example.com", Http2Enabled: true, PriorKnowledge: true},
			want: client.h2c,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, client.pick(tt.d))
		})
	}
}

func TestDo_CapabilityDrivesNextNegotiation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.DefaultConfig() // HTTP2 enabled

	caps := cache.NewHttp2Cache()
	client := NewClient(WithCapabilityCache(caps))

	plan, err := request.NewPlan(&scenario.Request{Name: "r", Method: "GET", URL: server.URL},
		cfg, request.WithCapabilityCache(caps))
	require.NoError(t, err)

	// First build: nothing known, ALPN required.
	d, err := plan.Build(session.New())
	require.NoError(t, err)
	assert.True(t, d.AlpnRequired)
	assert.False(t, d.PriorKnowledge)

	_, err = client.Do(d)
	require.NoError(t, err)

	// The plaintext httptest server answers over HTTP/1.1, so the next build
	// skips negotiation.
	d, err = plan.Build(session.New())
	require.NoError(t, err)
	assert.False(t, d.AlpnRequired)
	assert.False(t, d.PriorKnowledge)
}
