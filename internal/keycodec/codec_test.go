package keycodec

import (
	"bytes"
	"sort"
	"testing"
)

// TestRoundTrip verifies decode_key(encode_key(v)) == v for a schema
// matching property 5.
func TestRoundTrip(t *testing.T) {
	schema := NewSchema(IntType{}, StringType{})

	cases := [][]any{
		{int64(0), "a"},
		{int64(1), ""},
		{int64(1 << 40), "hello world"},
		{int64(255), "x"},
	}

	for _, vals := range cases {
		enc, err := schema.EncodeKey(vals)
		if err != nil {
			t.Fatalf("encode %v: %v", vals, err)
		}
		dec, err := schema.DecodeKey(enc)
		if err != nil {
			t.Fatalf("decode %v: %v", vals, err)
		}
		if len(dec) != len(vals) {
			t.Fatalf("round trip length mismatch: got %v want %v", dec, vals)
		}
		for i := range vals {
			if dec[i] != vals[i] {
				t.Errorf("round trip field %d mismatch: got %v want %v", i, dec[i], vals[i])
			}
		}
	}
}

// TestIntOrderPreserving checks that encoded non-negative integers sort in
// the same order as the integers themselves.
func TestIntOrderPreserving(t *testing.T) {
	values := []int64{0, 1, 2, 9, 10, 127, 128, 255, 256, 1 << 20, 1 << 40}
	type encoded struct {
		v   int64
		enc []byte
	}
	var encs []encoded
	for _, v := range values {
		e, err := IntType{}.Encode(v, false)
		if err != nil {
			t.Fatalf("encode %d: %v", v, err)
		}
		encs = append(encs, encoded{v, e})
	}

	sorted := append([]encoded(nil), encs...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].enc, sorted[j].enc) < 0
	})
	for i, e := range sorted {
		if e.v != values[i] {
			t.Fatalf("byte order does not match integer order: got %d at position %d, want %d", e.v, i, values[i])
		}
	}
}

// TestDecodeRejectsTrailingBytes ensures decoding requires consuming all
// input.
func TestDecodeRejectsTrailingBytes(t *testing.T) {
	schema := NewSchema(IntType{})
	enc, err := schema.EncodeKey([]any{int64(5)})
	if err != nil {
		t.Fatal(err)
	}
	enc = append(enc, 0xFF)
	if _, err := schema.DecodeKey(enc); err == nil {
		t.Fatal("expected error for trailing bytes, got nil")
	}
}

// TestPartialKeyEncoding confirms fewer-than-full field vectors encode
// without error, for use as scan bounds.
func TestPartialKeyEncoding(t *testing.T) {
	schema := NewSchema(IntType{}, StringType{}, IntType{})
	partial, err := schema.EncodePartial([]any{int64(7)})
	if err != nil {
		t.Fatalf("partial encode: %v", err)
	}
	full, err := schema.EncodeKey([]any{int64(7), "x", int64(1)})
	if err != nil {
		t.Fatalf("full encode: %v", err)
	}
	if !bytes.HasPrefix(full, partial) {
		t.Fatalf("partial key %x is not a prefix of full key %x", partial, full)
	}
}
