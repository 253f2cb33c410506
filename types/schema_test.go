package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_Builders(t *testing.T) {
	schema := NewObjectSchema().
		AddProperty("url", NewStringSchema().WithFormat(FormatURI).WithDescription("target page")).
		AddProperty("timeout", NewIntegerSchema().WithMinimum(0).WithDefault(1000)).
		AddProperty("kind", NewEnumSchema("click", "fill")).
		AddProperty("locators", NewMapSchema(NewStringSchema())).
		AddProperty("tags", NewArraySchema(NewStringSchema())).
		AddRequired("url")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(schema.MustJSON(), &decoded))

	assert.Equal(t, "object", decoded["type"])
	assert.Equal(t, []any{"url"}, decoded["required"])

	props := decoded["properties"].(map[string]any)
	url := props["url"].(map[string]any)
	assert.Equal(t, "uri", url["format"])
	assert.Equal(t, "target page", url["description"])

	timeout := props["timeout"].(map[string]any)
	assert.Equal(t, float64(0), timeout["minimum"])
	assert.Equal(t, float64(1000), timeout["default"])

	kind := props["kind"].(map[string]any)
	assert.Equal(t, []any{"click", "fill"}, kind["enum"])

	locators := props["locators"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, locators["additionalProperties"])
}
