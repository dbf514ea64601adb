// Package operator describes a sequence's record schema and, for derived
// sequences, the function mapping a source change to destination
// operations. An Operator is a language-neutral
// description: it knows how to turn a field vector into a binary key via
// internal/keycodec, and, for index and aggregation operators, how to
// turn a (key, prev, next) change into put/del/inc/dec operations.
package operator
