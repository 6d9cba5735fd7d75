package bot

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// requestSchema constrains the inbound payload before any NLU work runs.
// Length limits are enforced separately so they produce the documented
// 400 detail message.
var requestSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"transcript"},
	"properties": map[string]interface{}{
		"transcript": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"metadata": map[string]interface{}{
			"type": "object",
			"additionalProperties": map[string]interface{}{
				"type": "string",
			},
		},
	},
	"additionalProperties": false,
}

// validateRequest checks the decoded request body against the schema.
func validateRequest(body map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(requestSchema)
	documentLoader := gojsonschema.NewGoLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			return fmt.Errorf("invalid request: %s", desc.String())
		}
	}
	return nil
}
