package objectmodel

import "fmt"

// ToJSON converts a Value into a plain JSON-marshalable Go value, using the
// same `__ref`/`__neg_provid`/`__strong` tagging the on-disk object wire
// format and the HTTP API share, so a Ref survives a round trip through
// either.
func ToJSON(v Value) (any, error) {
	switch v.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.Bool, nil
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return v.Float, nil
	case KindString:
		return v.String, nil
	case KindRef:
		m := map[string]any{"__ref": v.Ref.ID}
		if v.Ref.Provisional {
			m = map[string]any{"__neg_provid": v.Ref.ID}
		}
		if v.Ref.Strong {
			m["__strong"] = true
		}
		return m, nil
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			raw, err := ToJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = raw
		}
		return out, nil
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			raw, err := ToJSON(e)
			if err != nil {
				return nil, err
			}
			out[k] = raw
		}
		return out, nil
	default:
		return nil, fmt.Errorf("objectmodel: unknown value kind %v", v.Kind)
	}
}

// FromJSON converts a plain value decoded from JSON (as produced by
// encoding/json into `any` — nil, bool, float64, string, []any,
// map[string]any) into a Value, recognizing the `__ref`/`__neg_provid`
// tagging ToJSON produces.
func FromJSON(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null
	case bool:
		return BoolValue(v)
	case float64:
		if v == float64(int64(v)) {
			return IntValue(int64(v))
		}
		return FloatValue(v)
	case string:
		return StringValue(v)
	case []any:
		out := make([]Value, len(v))
		for i, e := range v {
			out[i] = FromJSON(e)
		}
		return ArrayValue(out)
	case map[string]any:
		if refID, ok := v["__ref"]; ok {
			return RefValue(NewRef(int64(refID.(float64)), v["__strong"] == true))
		}
		if negID, ok := v["__neg_provid"]; ok {
			return RefValue(NewProvisionalRef(int64(negID.(float64)), v["__strong"] == true))
		}
		out := make(map[string]Value, len(v))
		for k, e := range v {
			out[k] = FromJSON(e)
		}
		return MapValue(out)
	default:
		return Null
	}
}

// DataToJSON converts a whole object data map, as ToJSON does per-field.
func DataToJSON(data map[string]Value) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		raw, err := ToJSON(v)
		if err != nil {
			return nil, fmt.Errorf("objectmodel: encoding field %q: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// DataFromJSON converts a whole object data map, as FromJSON does per-field.
func DataFromJSON(data map[string]any) map[string]Value {
	out := make(map[string]Value, len(data))
	for k, v := range data {
		out[k] = FromJSON(v)
	}
	return out
}
