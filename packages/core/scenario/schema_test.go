package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_Valid(t *testing.T) {
	err := ValidateDocument([]byte(sampleScenario))
	assert.NoError(t, err)
}

func TestValidateDocument_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", ":\n  - ["},
		{"requests missing", "name: x\n"},
		{"requests empty", "requests: []\n"},
		{"url missing", "requests:\n  - name: r\n"},
		{"unknown body key", "requests:\n  - url: https://x\n    body:\n      json: '{}'\n"},
		{"bad capture source", "requests:\n  - url: https://x\n    captures:\n      - name: c\n        source: cookie\n"},
		{"negative timeout", "requests:\n  - url: https://x\n    timeout: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, ValidateDocument([]byte(tt.yaml)))
		})
	}
}
