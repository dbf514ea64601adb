// Package sequence implements an ordered collection of blocks
// partitioned by binary key splits: Sequence routes a key
// to the block owning its range, and for derived sequences, implements
// capture_change — applying the prune rule to a source (prev, next)
// change and dispatching the resulting put/del/inc/dec operations to the
// blocks that own their destination keys.
package sequence
