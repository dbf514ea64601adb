// Package keycodec encodes ordered vectors of typed field values into
// byte strings that preserve lexicographic ordering per field, and decodes
// them back.
//
// A binary key is a length-prefixed concatenation of encoded field values.
// The last field in the vector may be variable-length and unbounded; every
// field before it is encoded with a length-prefixed form. Integer fields
// are comparison-preserving in every position, so byte-wise comparison of
// two encoded keys agrees with the field-wise comparison of the original
// vectors when every non-last field is an integer; a non-last string field
// orders by length first.
//
// Partial keys — a prefix of the full field vector — are supported for
// scan bounds. Decoding a partial key is not required to succeed; only
// full keys round-trip through Decode.
package keycodec
