package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strafehq/strafe/packages/core/session"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name     string
		template string
		chunks   []Chunk
	}{
		{
			name:     "static only",
			template: "no expressions",
			chunks:   []Chunk{{Static: true, Text: "no expressions"}},
		},
		{
			name:     "expression only",
			template: "{{x}}",
			chunks:   []Chunk{{Text: "{{x}}"}},
		},
		{
			name:     "mixed",
			template: `{"id":"{{id}}","fixed":1,"who":"{{user}}"}`,
			chunks: []Chunk{
				{Static: true, Text: `{"id":"`},
				{Text: "{{id}}"},
				{Static: true, Text: `","fixed":1,"who":"`},
				{Text: "{{user}}"},
				{Static: true, Text: `"}`},
			},
		},
		{
			name:     "empty",
			template: "",
			chunks:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.chunks, splitChunks(tt.template))
		})
	}
}

func TestChunkedTextBody_Render(t *testing.T) {
	b := NewChunkedTextBody(`{"id":"{{id}}","static":true}`)

	s := session.New()
	s.Set("id", "abc")

	chunks, err := b.Render(s)

	require.NoError(t, err)
	assert.Equal(t, []string{`{"id":"`, "abc", `","static":true}`}, chunks)
}

func TestChunkedTextBody_RenderUnresolved(t *testing.T) {
	b := NewChunkedTextBody("{{missing}}")

	_, err := b.Render(session.New())

	var resErr *session.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "missing", resErr.Expression)
}
