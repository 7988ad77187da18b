package scenario

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// fileSchema is the JSON schema a scenario document must satisfy. Validation
// catches shape mistakes with positions the YAML decoder would report less
// helpfully.
const fileSchema = `{
  "type": "object",
  "required": ["requests"],
  "properties": {
    "name": {"type": "string"},
    "variables": {"type": "object"},
    "requests": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["url"],
        "properties": {
          "name": {"type": "string"},
          "method": {"type": "string"},
          "url": {"type": "string"},
          "headers": {"type": "array", "items": {"$ref": "#/definitions/pair"}},
          "query": {"type": "array", "items": {"$ref": "#/definitions/pair"}},
          "params": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "value"],
              "properties": {
                "name": {"type": "string"},
                "value": {}
              }
            }
          },
          "form": {"type": "object"},
          "body": {
            "type": "object",
            "properties": {
              "text": {"type": "string"},
              "file": {"type": "string"},
              "bytes": {"type": "string"},
              "template": {"type": "string"}
            },
            "additionalProperties": false
          },
          "parts": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string"},
                "value": {"type": "string"},
                "file": {"type": "string"},
                "contentType": {"type": "string"}
              }
            }
          },
          "captures": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string"},
                "source": {"enum": ["body", "header", "status"]},
                "path": {"type": "string"}
              }
            }
          },
          "timeout": {"type": "integer", "minimum": 0},
          "think": {"type": "integer", "minimum": 0},
          "weight": {"type": "integer", "minimum": 0}
        }
      }
    }
  },
  "definitions": {
    "pair": {
      "type": "object",
      "required": ["name", "value"],
      "properties": {
        "name": {"type": "string"},
        "value": {"type": "string"}
      }
    }
  }
}`

// ValidateDocument checks a raw scenario document against the schema.
func ValidateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting document: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(fileSchema),
		gojsonschema.NewBytesLoader(jsonDoc),
	)
	if err != nil {
		return fmt.Errorf("validating document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("scenario does not match schema:")
	for _, desc := range result.Errors() {
		sb.WriteString("\n  - ")
		sb.WriteString(desc.String())
	}
	return fmt.Errorf("%s", sb.String())
}
