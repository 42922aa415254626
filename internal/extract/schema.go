package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Field names the extraction service must use.
const (
	FieldProvider           = "provider"
	FieldExternalIdentifier = "external_identifier"
	FieldAmount             = "amount"
	FieldDate               = "date"
	FieldTime               = "time"
	FieldPickupLocation     = "pickup_location"
	FieldDropoffLocation    = "dropoff_location"
)

var fieldNames = []string{
	FieldProvider, FieldExternalIdentifier, FieldAmount, FieldDate,
	FieldTime, FieldPickupLocation, FieldDropoffLocation,
}

// BuildFieldsJSONSchema returns the JSON Schema of an extraction response.
// Every field is optional; the model is told to omit what it cannot read.
func BuildFieldsJSONSchema() map[string]any {
	props := map[string]any{
		FieldProvider:           map[string]any{"type": "string", "minLength": 1},
		FieldExternalIdentifier: map[string]any{"type": "string", "minLength": 1, "maxLength": 128},
		FieldAmount:             map[string]any{"type": "string", "pattern": `^\d+(\.\d{1,2})?$`},
		FieldDate:               map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		FieldTime:               map[string]any{"type": "string", "pattern": `^\d{2}:\d{2}(:\d{2})?$`},
		FieldPickupLocation:     map[string]any{"type": "string"},
		FieldDropoffLocation:    map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

var compiledSchema *jsonschema.Schema

func init() {
	s, err := compileSchema(BuildFieldsJSONSchema())
	if err != nil {
		panic(fmt.Sprintf("extraction schema: %v", err))
	}
	compiledSchema = s
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fields.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("fields.json")
}

// ValidateJSON validates a provider response against the fields schema.
func ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
