package transform

import "strings"

// Fields no provider accepts in exported tool schemas.
var strippedSchemaFields = []string{
	"$schema", "$id", "$ref", "propertyNames", "patternProperties",
}

// Extra fields Gemini rejects on top of the common set.
var geminiStrippedFields = []string{"examples"}

// CleanSchema returns a deep copy of the JSON schema with fields outside
// the supported Draft-2020-12 subset removed. The input is not mutated.
func CleanSchema(schema map[string]any) map[string]any {
	cleaned, _ := cleanSchemaValue(schema, false, false)
	out, _ := cleaned.(map[string]any)
	return out
}

// SanitizeSchemaForGemini rewrites a JSON schema into the shape Gemini
// accepts: the common strip set plus examples removed, exclusiveMinimum/
// Maximum folded into minimum/maximum, and the root type uppercased to
// OBJECT. Returns the rewritten schema and whether anything was removed.
func SanitizeSchemaForGemini(schema map[string]any) (map[string]any, bool) {
	cleaned, stripped := cleanSchemaValue(schema, true, true)
	out, ok := cleaned.(map[string]any)
	if !ok {
		out = map[string]any{}
	}
	// Gemini requires the root type spelled OBJECT.
	if t, ok := out["type"].(string); ok {
		out["type"] = strings.ToUpper(t)
	} else {
		out["type"] = "OBJECT"
	}
	return out, stripped
}

func cleanSchemaValue(v any, foldExclusive, gemini bool) (any, bool) {
	stripped := false
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if isStrippedField(k, gemini) {
				stripped = true
				continue
			}
			if foldExclusive && (k == "exclusiveMinimum" || k == "exclusiveMaximum") {
				folded := "minimum"
				if k == "exclusiveMaximum" {
					folded = "maximum"
				}
				// Keep an explicit minimum/maximum if one already exists.
				if _, exists := val[folded]; !exists {
					out[folded] = child
				}
				stripped = true
				continue
			}
			cleanedChild, s := cleanSchemaValue(child, foldExclusive, gemini)
			stripped = stripped || s
			out[k] = cleanedChild
		}
		return out, stripped
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			cleanedChild, s := cleanSchemaValue(child, foldExclusive, gemini)
			stripped = stripped || s
			out[i] = cleanedChild
		}
		return out, stripped
	default:
		return v, false
	}
}

func isStrippedField(field string, gemini bool) bool {
	for _, f := range strippedSchemaFields {
		if field == f {
			return true
		}
	}
	if gemini {
		for _, f := range geminiStrippedFields {
			if field == f {
				return true
			}
		}
	}
	return false
}
