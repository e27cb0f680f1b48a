package observe

import (
	"encoding/json"
	"reflect"
	"strings"
)

// RedactedValue replaces the value of every sensitive field.
const RedactedValue = "[REDACTED]"

// SensitiveFields lists the substrings that mark a field key as sensitive.
// Matching is case-insensitive.
var SensitiveFields = []string{
	"apikey",
	"api_key",
	"token",
	"password",
	"secret",
	"authorization",
	"credential",
	"key",
	"private",
	"jwt",
}

// IsSensitiveKey reports whether key names a sensitive field.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range SensitiveFields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of fields with the string value of every sensitive
// key replaced by RedactedValue. Nested maps, slices and structs are
// redacted recursively. The input is never modified.
func Redact(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = redactField(k, v)
	}
	return out
}

func redactField(key string, v any) any {
	if IsSensitiveKey(key) && isStringLike(v) {
		return RedactedValue
	}
	return redactValue(v)
}

// isStringLike reports whether v holds text: a string of any named type, a
// pointer to one, or a byte slice.
func isStringLike(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return true
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() == reflect.Uint8
	default:
		return false
	}
}

func redactValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, error,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case map[string]any:
		return Redact(val)
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			out[k] = redactField(k, s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	}

	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		normalised, ok := normalise(v)
		if !ok {
			return v
		}
		return redactValue(normalised)
	default:
		return v
	}
}

// normalise converts v into its generic JSON form so struct fields can be
// matched by their encoded names.
func normalise(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	switch out.(type) {
	case map[string]any, []any:
		return out, true
	default:
		return nil, false
	}
}
