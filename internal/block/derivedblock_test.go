package block

import (
	"strconv"
	"testing"

	"github.com/dreamware/ringdb/internal/storage"
)

func newTestDerivedBlock(t *testing.T) *DerivedBlock {
	t.Helper()
	b := &DerivedBlock{Store: storage.NewMemoryStore(), Name: "idx"}
	if err := b.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	return b
}

func TestDerivedBlockPutDel(t *testing.T) {
	b := newTestDerivedBlock(t)
	if err := b.Put([]byte("k"), `{"name":"x"}`); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := b.Store.Get([]byte("k"))
	if err != nil || v != `{"name":"x"}` {
		t.Fatalf("got %q, err %v", v, err)
	}
	if err := b.Del([]byte("k")); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := b.Store.Get([]byte("k")); err != storage.ErrNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

// TestDerivedBlockAggregation mirrors scenario E6.
func TestDerivedBlockAggregation(t *testing.T) {
	b := newTestDerivedBlock(t)
	key := []byte("cat:7")

	for _, views := range []int{10, 20, 30} {
		delta := `[1,` + strconv.Itoa(views) + `]`
		if err := b.Inc(key, delta); err != nil {
			t.Fatalf("inc: %v", err)
		}
	}
	got, err := b.Store.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "[3,60]" {
		t.Fatalf("got %q, want [3,60]", got)
	}

	if err := b.Dec(key, "[1,10]"); err != nil {
		t.Fatalf("dec: %v", err)
	}
	got, err = b.Store.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "[2,50]" {
		t.Fatalf("got %q, want [2,50]", got)
	}
}

// TestDerivedBlockAggregationDropsToZero verifies the accumulator is
// removed once its count reaches zero rather than left as [0,...].
func TestDerivedBlockAggregationDropsToZero(t *testing.T) {
	b := newTestDerivedBlock(t)
	key := []byte("cat:7")
	if err := b.Inc(key, "[1,10]"); err != nil {
		t.Fatalf("inc: %v", err)
	}
	if err := b.Dec(key, "[1,10]"); err != nil {
		t.Fatalf("dec: %v", err)
	}
	if _, err := b.Store.Get(key); err != storage.ErrNotFound {
		t.Fatalf("expected accumulator removed, got err=%v", err)
	}
}
