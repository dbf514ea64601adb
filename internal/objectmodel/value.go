package objectmodel

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindRef
	KindArray
	KindMap
)

// Value is a tagged variant over the JSON-compatible types an object's
// data may carry, plus Ref for references to other objects. Only one of
// the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	String string
	Ref    Ref
	Array  []Value
	Map    map[string]Value
}

// Null is the zero Value.
var Null = Value{Kind: KindNull}

func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func IntValue(n int64) Value     { return Value{Kind: KindInt, Int: n} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value { return Value{Kind: KindString, String: s} }
func RefValue(r Ref) Value       { return Value{Kind: KindRef, Ref: r} }
func ArrayValue(vs []Value) Value {
	return Value{Kind: KindArray, Array: vs}
}
func MapValue(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// IsNull reports whether v is the Null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal reports deep, variant-aware equality between v and other.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.String == other.String
	case KindRef:
		return v.Ref.Equal(other.Ref)
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, a := range v.Map {
			b, ok := other.Map[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Ref is a reference to another object by ID. A Provisional reference
// (negative ID) is only meaningful within the insert batch that produced
// it; the rectify pass (see internal/block) replaces it with a Ref to the
// final, positive ID before the referencing record is persisted.
//
// Strong marks a reference declared by the schema as a strong path: when
// the source object stops holding a strong reference to the target and no
// other strong path reaches it, the target is cascade-deleted.
type Ref struct {
	ID          int64
	Provisional bool
	Strong      bool
}

// Equal compares two references by identity (ID and provisional-ness),
// ignoring Strong since strength is a property of the declaring path, not
// the reference value itself.
func (r Ref) Equal(other Ref) bool {
	return r.ID == other.ID && r.Provisional == other.Provisional
}

// NewRef returns a strong or weak reference to a final (already-assigned,
// positive) ID.
func NewRef(id int64, strong bool) Ref {
	return Ref{ID: id, Strong: strong}
}

// NewProvisionalRef returns a reference to a not-yet-assigned object
// within the current insert batch. negProvID must be negative.
func NewProvisionalRef(negProvID int64, strong bool) Ref {
	return Ref{ID: negProvID, Provisional: true, Strong: strong}
}
