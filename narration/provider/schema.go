package provider

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a JSON schema that the Responses API accepts.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	m, err := schemaToMap(reflector.Reflect(v))
	if err != nil {
		panic(err)
	}
	ensureOpenAICompliance(m)
	return m
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureOpenAICompliance closes every object and marks all of its properties required.
// Objects declared without properties (free-form maps) are left open.
func ensureOpenAICompliance(schema map[string]any) {
	props, hasProps := schema[propertiesKey].(map[string]any)
	if t, ok := schema[typeKey].(string); ok && t == "object" && hasProps {
		schema[additionalPropertiesKey] = false
		required := make([]string, 0, len(props))
		for name := range props {
			required = append(required, name)
		}
		sort.Strings(required)
		if len(required) > 0 {
			schema[requiredKey] = required
		}
	}

	for _, p := range props {
		if pm, ok := p.(map[string]any); ok {
			ensureOpenAICompliance(pm)
		}
	}
	if items, ok := schema[itemsKey].(map[string]any); ok {
		ensureOpenAICompliance(items)
	}
	if ap, ok := schema[additionalPropertiesKey].(map[string]any); ok {
		ensureOpenAICompliance(ap)
	}
}
