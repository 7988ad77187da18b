package stress

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	protocol "github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/core/scenario"
)

func quietReporter() *Reporter {
	return NewReporter(WithWriter(io.Discard), WithNoColor(true), WithNoProgress(true))
}

func testProtocol() *protocol.Config {
	cfg := protocol.DefaultConfig()
	cfg.HTTP2 = false
	return cfg
}

func TestRunner_RateMode(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Rate = 100
	cfg.Duration = 300 * time.Millisecond

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithProtocolConfig(testProtocol()))

	file, err := scenario.Parse([]byte("requests:\n  - name: ping\n    url: " + server.URL + "\n"))
	require.NoError(t, err)
	require.NoError(t, runner.Load(file))

	result, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Passed, "no thresholds configured means the run passes")
	assert.Positive(t, result.Summary.TotalRequests)
	assert.Equal(t, result.Summary.TotalRequests, hits.Load())
	assert.Zero(t, result.Summary.ErrorCount)
}

func TestRunner_VUModeCapturesFeedLaterRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token":"t-9"}`))
		case "/use":
			if r.Header.Get("Authorization") != "Bearer t-9" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	scenarioYAML := `
requests:
  - name: fetch token
    url: ` + server.URL + `/token
    captures:
      - name: token
        source: body
        path: token
  - name: use token
    url: ` + server.URL + `/use
    headers:
      - name: Authorization
        value: "Bearer {{token}}"
`
	file, err := scenario.Parse([]byte(scenarioYAML))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Mode = VUMode
	cfg.VUs = 2
	cfg.Duration = 400 * time.Millisecond

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithProtocolConfig(testProtocol()))
	require.NoError(t, runner.Load(file))

	// Resolve the first request before the second can succeed: seed nothing,
	// the capture fills the session as each virtual user works through the
	// scenario. Unresolved runs of "use token" before a token is captured are
	// expected errors, not failures of the capture flow.
	result, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Positive(t, result.Summary.TotalRequests)
	use, ok := result.Summary.RequestBreakdown["use token"]
	if ok {
		assert.Positive(t, use.Total)
	}
}

func TestRunner_ThresholdFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Rate = 50
	cfg.Duration = 200 * time.Millisecond
	cfg.Thresholds = Thresholds{ErrorRate: 0.01}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithProtocolConfig(testProtocol()))

	file, err := scenario.Parse([]byte("requests:\n  - name: failing\n    url: " + server.URL + "\n"))
	require.NoError(t, err)
	require.NoError(t, runner.Load(file))

	result, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.NotEmpty(t, result.Thresholds)
}

func TestRunner_LoadRejectsBadDeclaration(t *testing.T) {
	runner := NewRunner(DefaultConfig(), WithReporter(quietReporter()), WithProtocolConfig(testProtocol()))

	file := &scenario.File{
		Requests: []*scenario.Request{{
			Name:   "conflicted",
			Method: "POST",
			URL:    "https://example.com",
			Body:   &scenario.StringBody{Template: "x"},
			Parts:  []*scenario.Part{{Kind: scenario.PartValue, Name: "p", Value: "v"}},
		}},
	}

	err := runner.Load(file)
	assert.Error(t, err)
}

func TestRunner_RunWithoutScenario(t *testing.T) {
	runner := NewRunner(DefaultConfig(), WithReporter(quietReporter()))

	_, err := runner.Run(context.Background())
	assert.Error(t, err)
}

func TestRunner_ConditionalCachingSavesTransfers(t *testing.T) {
	var full, notModified atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	proto := testProtocol()
	proto.RequestCaching = true

	cfg := DefaultConfig()
	cfg.Rate = 100
	cfg.Duration = 300 * time.Millisecond

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithProtocolConfig(proto))

	file, err := scenario.Parse([]byte("requests:\n  - name: cached\n    url: " + server.URL + "\n"))
	require.NoError(t, err)
	require.NoError(t, runner.Load(file))

	result, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Summary.ErrorCount, "304 responses are not errors")
	if result.Summary.TotalRequests > 1 {
		assert.Positive(t, notModified.Load(), "after the first response the validator cache should produce 304s")
		assert.Equal(t, notModified.Load(), result.Summary.NotModified)
	}
}
