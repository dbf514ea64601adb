package operator

import (
	"encoding/json"
	"fmt"

	"github.com/dreamware/ringdb/internal/keycodec"
	"github.com/dreamware/ringdb/internal/objectmodel"
)

// Kind distinguishes a data operator (describes the primary record
// schema only) from the two derived-sequence operator kinds.
type Kind int

const (
	KindData Kind = iota
	KindIndex
	KindAggregation
)

// FieldSpec names one field of an operator's key or payload, with the
// keycodec type used to encode it when it participates in a key.
type FieldSpec struct {
	Name string
	Type keycodec.FieldType
}

// Operator is the schema plus (for derived kinds) the derivation rule of
// one sequence. The zero value is not usable; build one with
// NewDataOperator, NewIndexOperator, or NewAggregationOperator.
type Operator struct {
	Kind          Kind
	KeyFields     []FieldSpec
	PayloadFields []FieldSpec
	SumFields     []string

	schema keycodec.Schema
}

// NewDataOperator describes a primary data sequence's schema.
func NewDataOperator(keyFields, payloadFields []FieldSpec) *Operator {
	return &Operator{
		Kind:          KindData,
		KeyFields:     keyFields,
		PayloadFields: payloadFields,
		schema:        schemaOf(keyFields),
	}
}

// NewIndexOperator describes an index: keyFields locate the destination
// record, payloadFields are carried as its value.
func NewIndexOperator(keyFields, payloadFields []FieldSpec) *Operator {
	return &Operator{
		Kind:          KindIndex,
		KeyFields:     keyFields,
		PayloadFields: payloadFields,
		schema:        schemaOf(keyFields),
	}
}

// NewAggregationOperator describes an aggregation: keyFields group
// records, sumFields names the numeric fields accumulated alongside a
// leading count's `[count, sum_1, sum_2, …]` payload.
func NewAggregationOperator(keyFields []FieldSpec, sumFields []string) *Operator {
	return &Operator{
		Kind:      KindAggregation,
		KeyFields: keyFields,
		SumFields: sumFields,
		schema:    schemaOf(keyFields),
	}
}

func schemaOf(fields []FieldSpec) keycodec.Schema {
	types := make([]keycodec.FieldType, len(fields))
	for i, f := range fields {
		types[i] = f.Type
	}
	return keycodec.NewSchema(types...)
}

// SupportsImplicitOverride reports whether a put of this operator's
// destination key implicitly overrides a pending delete of the same key.
// True for index operators.
func (op *Operator) SupportsImplicitOverride() bool { return op.Kind == KindIndex }

// IsAggregation reports whether this operator derives inc/dec pairs
// rather than put/del pairs.
func (op *Operator) IsAggregation() bool { return op.Kind == KindAggregation }

// EncodeKey encodes a full key vector under this operator's key schema.
func (op *Operator) EncodeKey(vals []any) ([]byte, error) {
	return op.schema.EncodeKey(vals)
}

// EncodePartial encodes a key prefix for use as a scan bound.
func (op *Operator) EncodePartial(vals []any) ([]byte, error) {
	return op.schema.EncodePartial(vals)
}

// DecodeKey decodes a full binary key produced by EncodeKey.
func (op *Operator) DecodeKey(data []byte) ([]any, error) {
	return op.schema.DecodeKey(data)
}

// DestRecord is one entry of the map an operator's Map method produces:
// the destination binary key, paired with the JSON or JSON-array value
// that would be written there for the source record supplied to Map.
type DestRecord struct {
	Key   []byte
	Value string
}

// Map implements `operator.map(k, record)`: it computes
// the destination record(s) that a single source record contributes.
// record may be nil (representing an absent prev or next), in which case
// Map returns an empty map. Only index and aggregation operators support
// Map; calling it on a data operator is a programmer error.
func (op *Operator) Map(srcKey []byte, record *objectmodel.WebObject) (map[string]DestRecord, error) {
	if op.Kind == KindData {
		return nil, fmt.Errorf("operator: Map is not defined for a data operator")
	}
	if record == nil {
		return map[string]DestRecord{}, nil
	}

	plural, err := op.extractField(record, op.KeyFields[0].Name)
	if err != nil {
		return nil, err
	}

	var firstValues []any
	if plural.Kind == objectmodel.KindArray {
		for _, v := range plural.Array {
			raw, err := rawOf(v)
			if err != nil {
				return nil, err
			}
			firstValues = append(firstValues, raw)
		}
	} else {
		raw, err := rawOf(plural)
		if err != nil {
			return nil, err
		}
		firstValues = []any{raw}
	}

	rest := make([]any, 0, len(op.KeyFields)-1)
	for _, f := range op.KeyFields[1:] {
		v, err := op.extractField(record, f.Name)
		if err != nil {
			return nil, err
		}
		raw, err := rawOf(v)
		if err != nil {
			return nil, err
		}
		rest = append(rest, raw)
	}

	value, err := op.valueFor(record)
	if err != nil {
		return nil, err
	}

	out := make(map[string]DestRecord, len(firstValues))
	for _, first := range firstValues {
		vec := append([]any{first}, rest...)
		key, err := op.schema.EncodeKey(vec)
		if err != nil {
			return nil, err
		}
		out[string(key)] = DestRecord{Key: key, Value: value}
	}
	return out, nil
}

func (op *Operator) valueFor(record *objectmodel.WebObject) (string, error) {
	switch op.Kind {
	case KindIndex:
		payload := make(map[string]any, len(op.PayloadFields))
		for _, f := range op.PayloadFields {
			v, err := op.extractField(record, f.Name)
			if err != nil {
				return "", err
			}
			raw, err := rawOf(v)
			if err != nil {
				return "", err
			}
			payload[f.Name] = raw
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case KindAggregation:
		acc := make([]float64, 1+len(op.SumFields))
		acc[0] = 1
		for i, name := range op.SumFields {
			v, err := op.extractField(record, name)
			if err != nil {
				return "", err
			}
			f, err := numericOf(v)
			if err != nil {
				return "", err
			}
			acc[1+i] = f
		}
		b, err := json.Marshal(acc)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("operator: valueFor called on non-derived operator")
	}
}

// extractField reads a named field off record: "id" and "category" are
// drawn from the object's well-known columns, everything else from its
// data map.
func (op *Operator) extractField(record *objectmodel.WebObject, name string) (objectmodel.Value, error) {
	switch name {
	case "id":
		return objectmodel.IntValue(record.ID), nil
	case "category", "category_id":
		return objectmodel.IntValue(record.CategoryID), nil
	default:
		v, ok := record.Data[name]
		if !ok {
			return objectmodel.Null, fmt.Errorf("operator: field %q absent from record %d", name, record.ID)
		}
		return v, nil
	}
}

// rawOf converts an objectmodel.Value to the plain Go value keycodec's
// field types accept (int64 or string).
func rawOf(v objectmodel.Value) (any, error) {
	switch v.Kind {
	case objectmodel.KindInt:
		return v.Int, nil
	case objectmodel.KindString:
		return v.String, nil
	case objectmodel.KindRef:
		return v.Ref.ID, nil
	default:
		return nil, fmt.Errorf("operator: field of kind %v cannot be used as a key component", v.Kind)
	}
}

func numericOf(v objectmodel.Value) (float64, error) {
	switch v.Kind {
	case objectmodel.KindInt:
		return float64(v.Int), nil
	case objectmodel.KindFloat:
		return v.Float, nil
	default:
		return 0, fmt.Errorf("operator: field of kind %v is not numeric", v.Kind)
	}
}
