package block

import "testing"

func ptr(n int64) *int64 { return &n }

func TestZonesValidInsertID(t *testing.T) {
	z := Zones{
		A:     ptr(1000),
		B:     ptr(2000),
		C:     ptr(2000),
		Shard: Shard3{Offset: 0, Base: 3},
	}

	if !z.ValidInsertID(1500) {
		t.Fatal("exclusive zone id should be valid regardless of shard")
	}
	if z.ValidInsertID(1999) == false {
		t.Fatal("1999 is inside [A,B), should be valid")
	}
	// C == B here so there is no forbidden gap; 2000 enters the sharded zone.
	if !z.ValidInsertID(2001) {
		t.Fatal("2001 = offset 0 mod 3, should satisfy shard")
	}
	if z.ValidInsertID(2002) {
		t.Fatal("2002 mod 3 != 0, should not satisfy shard")
	}
}

func TestZonesFixUpwards(t *testing.T) {
	z := Zones{Shard: Shard3{Offset: 1, Base: 3}}
	if got := z.fixUpwards(2000); got != 2002 {
		// 2000 % 3 == 2, 2001 % 3 == 0, 2002 % 3 == 1
		t.Fatalf("fixUpwards(2000) = %d, want 2002", got)
	}
}

func TestShard3DisjointTrue(t *testing.T) {
	a := Shard3{Offset: 0, Base: 3}
	b := Shard3{Offset: 1, Base: 3}
	if !a.Disjoint(b) {
		t.Fatal("offsets 0 and 1 mod 3 should never collide")
	}
}

func TestShard3DisjointFalse(t *testing.T) {
	a := Shard3{Offset: 0, Base: 3}
	b := Shard3{Offset: 0, Base: 6}
	if a.Disjoint(b) {
		t.Fatal("0 mod 3 and 0 mod 6 both match id 0")
	}
}
