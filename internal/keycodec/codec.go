package keycodec

import (
	"encoding/binary"
	"fmt"
)

// FieldType encodes and decodes a single field value to/from a
// comparison-preserving byte representation.
//
// IntType guarantees that for any two values a, b of the type,
// bytes.Compare(Encode(a, false), Encode(b, false)) has the same sign as
// comparing a and b directly (order-preserving under byte-wise comparison).
// StringType does not: its non-last encoding orders by byte length first
// (see StringType). The last field of a key is allowed to relax this for
// tie-breaking beyond the prefix, since nothing follows it in the encoded key.
type FieldType interface {
	// Name identifies the type for error messages and schema descriptions.
	Name() string

	// Encode writes v as bytes. When last is true, the field is the final
	// component of the key and may be encoded without an explicit length
	// (it consumes the remainder of the buffer on decode).
	Encode(v any, last bool) ([]byte, error)

	// Decode consumes a value of this type from the front of data and
	// returns the decoded value plus the unconsumed remainder. When last
	// is true, the entire remaining input is consumed.
	Decode(data []byte, last bool) (value any, rest []byte, err error)
}

// Schema is an ordered list of field types describing one sequence's key.
type Schema struct {
	Fields []FieldType
}

// NewSchema builds a Schema from an ordered list of field types.
func NewSchema(fields ...FieldType) Schema {
	return Schema{Fields: fields}
}

// EncodeKey encodes a full vector of values, one per schema field, into a
// single binary key. len(values) must equal len(s.Fields).
func (s Schema) EncodeKey(values []any) ([]byte, error) {
	if len(values) != len(s.Fields) {
		return nil, fmt.Errorf("keycodec: expected %d values, got %d", len(s.Fields), len(values))
	}
	return s.encodePrefix(values)
}

// EncodePartial encodes a prefix of the schema's fields (fewer than the
// full arity), for use as a scan bound. The decoder is not required to
// handle the result of EncodePartial.
func (s Schema) EncodePartial(values []any) ([]byte, error) {
	if len(values) > len(s.Fields) {
		return nil, fmt.Errorf("keycodec: partial key has more values (%d) than schema fields (%d)", len(values), len(s.Fields))
	}
	return s.encodePrefix(values)
}

func (s Schema) encodePrefix(values []any) ([]byte, error) {
	var out []byte
	n := len(values)
	for i, v := range values {
		last := i == n-1 && n == len(s.Fields)
		enc, err := s.Fields[i].Encode(v, last)
		if err != nil {
			return nil, fmt.Errorf("keycodec: field %d (%s): %w", i, s.Fields[i].Name(), err)
		}
		out = append(out, enc...)
	}
	return out, nil
}

// DecodeKey decodes a full binary key produced by EncodeKey. Decoding MUST
// consume all input bytes; leftover bytes are an error.
func (s Schema) DecodeKey(data []byte) ([]any, error) {
	values := make([]any, 0, len(s.Fields))
	rest := data
	for i, ft := range s.Fields {
		last := i == len(s.Fields)-1
		v, r, err := ft.Decode(rest, last)
		if err != nil {
			return nil, fmt.Errorf("keycodec: field %d (%s): %w", i, ft.Name(), err)
		}
		values = append(values, v)
		rest = r
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("keycodec: %d trailing bytes after decoding key", len(rest))
	}
	return values, nil
}

// IntType encodes non-negative int64 values with an order-preserving,
// variable-length, big-endian encoding: a one-byte length prefix followed
// by that many big-endian bytes. Because the length byte is compared
// before the digits, two encodings compare correctly byte-wise for all
// non-negative values regardless of magnitude.
type IntType struct{}

func (IntType) Name() string { return "int" }

func (IntType) Encode(v any, last bool) ([]byte, error) {
	n, err := asInt64(v)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("IntType: negative value %d not supported", n)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	i := 0
	for i < 8 && buf[i] == 0 {
		i++
	}
	digits := buf[i:]
	// A length byte precedes the digits regardless of position: integers
	// always need it to stay independently decodable for scans that
	// re-inspect a field after a partial-key bound.
	out := make([]byte, 0, 1+len(digits))
	out = append(out, byte(len(digits)))
	out = append(out, digits...)
	return out, nil
}

func (IntType) Decode(data []byte, last bool) (any, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("IntType: empty input")
	}
	n := int(data[0])
	if len(data) < 1+n {
		return nil, nil, fmt.Errorf("IntType: truncated input, need %d bytes, have %d", n, len(data)-1)
	}
	var buf [8]byte
	copy(buf[8-n:], data[1:1+n])
	val := int64(binary.BigEndian.Uint64(buf[:]))
	return val, data[1+n:], nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("IntType: unsupported value type %T", v)
	}
}

// StringType encodes UTF-8 strings. Non-last fields are length-prefixed
// (4-byte big-endian byte count) so the next field can be located; the
// last field consumes the remainder of the buffer with no prefix. Because
// the prefix comes first, encoded non-last strings compare by length
// before content: "b" sorts before "aa".
type StringType struct{}

func (StringType) Name() string { return "string" }

func (StringType) Encode(v any, last bool) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("StringType: unsupported value type %T", v)
	}
	if last {
		return []byte(s), nil
	}
	out := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(out[:4], uint32(len(s)))
	copy(out[4:], s)
	return out, nil
}

func (StringType) Decode(data []byte, last bool) (any, []byte, error) {
	if last {
		return string(data), nil, nil
	}
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("StringType: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(data[:4]))
	if len(data) < 4+n {
		return nil, nil, fmt.Errorf("StringType: truncated input, need %d bytes, have %d", n, len(data)-4)
	}
	return string(data[4 : 4+n]), data[4+n:], nil
}
