package omnibus

import (
	"reflect"

	"github.com/iancoleman/strcase"
)

// ToWireCase returns a copy of v with every mapping key rewritten to
// snake_case. Nested mappings are rewritten too; arrays are only walked to
// reach mappings held as elements. Scalars are returned unchanged and v is
// never modified.
func ToWireCase(v any) any {
	return transcode(v, strcase.ToSnake)
}

// ToInternalCase is the inverse of ToWireCase: every mapping key becomes
// lowerCamelCase.
func ToInternalCase(v any) any {
	return transcode(v, strcase.ToLowerCamel)
}

func transcode(v any, key func(string) string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[key(k)] = transcode(val, key)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, val := range t {
			if s, ok := k.(string); ok {
				out[key(s)] = transcode(val, key)
				continue
			}
			out[k] = transcode(val, key)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = transcode(elem, key)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, elem := range t {
			out[i], _ = transcode(elem, key).(map[string]any)
		}
		return out
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, []byte:
		return v
	}
	return transcodeReflect(v, key)
}

// transcodeReflect handles typed maps with string keys, such as RLCSMessage or
// map[string][]float64, by converting them to map[string]any.
func transcodeReflect(v any, key func(string) string) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return v
	}
	if rv.IsNil() {
		return v
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[key(iter.Key().String())] = transcode(iter.Value().Interface(), key)
	}
	return out
}
