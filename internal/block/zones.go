package block

import "errors"

var (
	errZonesIncomplete = errors.New("block: exclusive zone declared without forbidden/sharded thresholds")
	errZonesOrder      = errors.New("block: zone thresholds must satisfy A <= B <= C")
)

// Shard3 is a base-3-style residue-class predicate `id ≡ offset (mod
// base)` partitioning a ring's sharded insert zone.
// A zero Base matches every id (no sharding constraint).
type Shard3 struct {
	Offset int64
	Base   int64
}

// Match reports whether id satisfies this predicate.
func (s Shard3) Match(id int64) bool {
	if s.Base <= 0 {
		return true
	}
	r := id % s.Base
	if r < 0 {
		r += s.Base
	}
	return r == s.Offset
}

// Disjoint reports whether s and other never match the same id, used at
// ring-open time to check that two sharded zones never overlap.
func (s Shard3) Disjoint(other Shard3) bool {
	if s.Base <= 0 || other.Base <= 0 {
		// An unconstrained predicate matches every id, so it can only be
		// disjoint from another unconstrained predicate if bases differ
		// in a way that's impossible; treat it as overlapping.
		return false
	}
	for i := int64(0); i < lcm(s.Base, other.Base); i++ {
		if s.Match(i) && other.Match(i) {
			return false
		}
	}
	return true
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int64) int64 {
	return a / gcd(a, b) * b
}

// Zones describes a data ring's insert-id layout: an optional exclusive
// zone [A, B), an optional forbidden zone [B, C), and a sharded zone
// [C, ∞) gated by Shard. BlockShard, if set, further restricts the
// sharded zone to the intersection with a block-local predicate.
type Zones struct {
	A, B, C    *int64
	Shard      Shard3
	BlockShard *Shard3
}

// Validate checks the intra-ring zone ordering A <= B <= C.
func (z Zones) Validate() error {
	if z.A != nil {
		if z.B == nil || z.C == nil {
			return errZonesIncomplete
		}
		if !(*z.A <= *z.B && *z.B <= *z.C) {
			return errZonesOrder
		}
	}
	return nil
}

// ValidInsertID reports whether id falls in an insertable zone of this
// ring: the exclusive zone (if any), or the sharded zone with the
// combined ring/block shard predicate satisfied.
func (z Zones) ValidInsertID(id int64) bool {
	if z.A != nil && id >= *z.A && id < *z.B {
		return true
	}
	if z.B != nil && z.C != nil && id >= *z.B && id < *z.C {
		return false
	}
	cStart := int64(0)
	if z.C != nil {
		cStart = *z.C
	}
	if id < cStart {
		return false
	}
	return z.matchesShard(id)
}

func (z Zones) matchesShard(id int64) bool {
	if !z.Shard.Match(id) {
		return false
	}
	if z.BlockShard != nil && !z.BlockShard.Match(id) {
		return false
	}
	return true
}

// fixUpwards returns the smallest id' >= id satisfying the combined
// shard predicate, the incremental allocation policy's "move id
// upward" step.
func (z Zones) fixUpwards(id int64) int64 {
	for !z.matchesShard(id) {
		id++
	}
	return id
}
