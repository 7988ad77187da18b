package session

import (
	"encoding/base64"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_UUID(t *testing.T) {
	s := New()

	out, err := s.ResolveString("{{uuid()}}")

	require.NoError(t, err)
	_, err = uuid.Parse(out)
	assert.NoError(t, err)
}

func TestRegistry_Random(t *testing.T) {
	s := New()

	for i := 0; i < 50; i++ {
		out, err := s.ResolveString("{{random(5, 10)}}")
		require.NoError(t, err)

		n, err := strconv.Atoi(out)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 5)
		assert.LessOrEqual(t, n, 10)
	}
}

func TestRegistry_RandomString(t *testing.T) {
	s := New()

	out, err := s.ResolveString("{{randomString(8)}}")

	require.NoError(t, err)
	assert.Len(t, out, 8)
}

func TestRegistry_Base64(t *testing.T) {
	s := New()

	out, err := s.ResolveString(`{{base64("user:pass")}}`)

	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("user:pass")), out)
}

func TestRegistry_URLEncode(t *testing.T) {
	s := New()

	out, err := s.ResolveString(`{{urlEncode("a b&c")}}`)

	require.NoError(t, err)
	assert.Equal(t, "a+b%26c", out)
}

func TestRegistry_UnknownFunctionFails(t *testing.T) {
	s := New()

	_, err := s.ResolveString("{{nosuchfunc()}}")

	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("constant", func([]string) any { return "fixed" })

	v, ok := r.Call("constant()")

	require.True(t, ok)
	assert.Equal(t, "fixed", v)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`1, 10`, []string{"1", "10"}},
		{`"a, b", c`, []string{"a, b", "c"}},
		{`'single'`, []string{"single"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseArgs(tt.in), tt.in)
	}
}
