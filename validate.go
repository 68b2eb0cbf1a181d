package modulebox

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resultSchema describes the JSON form of a Result: a list of row,
// paragraph or page-line records. Rows and paragraphs are told apart by
// their content: an object for rows, a string for paragraphs.
const resultSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"oneOf": [
			{
				"type": "object",
				"required": ["type", "content"],
				"additionalProperties": false,
				"properties": {
					"type": {"const": "row"},
					"content": {
						"type": "object",
						"additionalProperties": {"type": ["string", "number", "boolean", "null"]}
					}
				}
			},
			{
				"type": "object",
				"required": ["type", "content"],
				"additionalProperties": false,
				"properties": {
					"type": {"type": "string"},
					"content": {"type": "string"}
				}
			},
			{
				"type": "object",
				"required": ["page", "content"],
				"additionalProperties": false,
				"properties": {
					"page": {"type": "integer", "minimum": 1},
					"content": {"type": "string"}
				}
			}
		]
	}
}`

var compiledResultSchema = jsonschema.MustCompileString("result.schema.json", resultSchema)

// ValidateResult checks serialised extraction output against the record
// schema before it is persisted.
func ValidateResult(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := compiledResultSchema.Validate(v); err != nil {
		return fmt.Errorf("result does not match schema: %w", err)
	}
	return nil
}
