package engine

import (
	"testing"

	"github.com/dreamware/ringdb/internal/block"
	"github.com/dreamware/ringdb/internal/keycodec"
	"github.com/dreamware/ringdb/internal/objectmodel"
	"github.com/dreamware/ringdb/internal/operator"
	"github.com/dreamware/ringdb/internal/registry"
	"github.com/dreamware/ringdb/internal/ring"
	"github.com/dreamware/ringdb/internal/sequence"
	"github.com/dreamware/ringdb/internal/storage"
)

func dataOp() *operator.Operator {
	return operator.NewDataOperator([]operator.FieldSpec{{Name: "id", Type: keycodec.IntType{}}}, nil)
}

// newRing builds and opens a single-block ring, optionally seeding it
// with entries while the block is still writable before flipping it
// (and the ring) to read-only, the same order a bootstrap load followed
// by `engine serve` would apply.
func newRing(t *testing.T, name string, zones block.Zones, readOnly bool, base *ring.Ring, seed []block.InsertEntry) *ring.Ring {
	t.Helper()
	b := &block.DataBlock{Store: storage.NewMemoryStore(), Zones: zones, Name: name}
	seq := sequence.NewData(name, dataOp())
	seq.AddBlock(b, nil)
	r := &ring.Ring{Name: name, Base: base, Data: seq, InsertBlock: b}
	if err := r.Open(); err != nil {
		t.Fatalf("open ring %s: %v", name, err)
	}
	if len(seed) > 0 {
		if _, err := b.Insert(seed, nil); err != nil {
			t.Fatalf("seed ring %s: %v", name, err)
		}
	}
	if readOnly {
		r.ReadOnly = true
		b.ReadOnly = true
	}
	return r
}

func twoRingDB(t *testing.T) *Database {
	t.Helper()
	bottom := newRing(t, "bottom", block.Zones{}, true, nil, nil)
	a, c := int64(1000), int64(2000)
	top := newRing(t, "top", block.Zones{A: &a, B: &c, C: &c, Shard: block.Shard3{Offset: 0, Base: 3}}, false, bottom, nil)

	db := New()
	db.AddRing(bottom)
	db.AddRing(top)
	return db
}

func TestSelectDefaultsToTopRing(t *testing.T) {
	db := twoRingDB(t)
	id, err := db.Insert(map[string]objectmodel.Value{"n": objectmodel.StringValue("b")}, InsertOptions{})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != 1000 {
		t.Fatalf("got id %d, want 1000 (first id in top ring's exclusive zone)", id)
	}

	res, err := db.Select(id, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if res.Object.Data["n"].String != "b" {
		t.Fatalf("got %q, want %q", res.Object.Data["n"].String, "b")
	}
}

func TestSelectPopulatesRegistryOnMiss(t *testing.T) {
	db := twoRingDB(t)
	db.UseRegistry(registry.New(0, 0))

	id, err := db.Insert(map[string]objectmodel.Value{"n": objectmodel.StringValue("b")}, InsertOptions{})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := db.Select(id, ""); err != nil {
		t.Fatalf("select: %v", err)
	}
	if obj := db.registry.Get(id); obj == nil {
		t.Fatalf("expected registry to be populated after a select miss")
	}
}

func TestUpdateEscalatesToTopRing(t *testing.T) {
	topBlock := &block.DataBlock{Store: storage.NewMemoryStore(), Name: "top"}
	topSeq := sequence.NewData("top", dataOp())
	topSeq.AddBlock(topBlock, nil)
	top := &ring.Ring{Name: "top", Data: topSeq, InsertBlock: topBlock}
	if err := top.Open(); err != nil {
		t.Fatalf("open top: %v", err)
	}

	bottom := newRing(t, "bottom", block.Zones{}, true, nil, []block.InsertEntry{
		{ExplicitID: 1, HasExplicitID: true, Data: map[string]objectmodel.Value{"v": objectmodel.IntValue(1)}},
	})
	bottom.UpsaveTarget = top
	bottomBlock := bottom.InsertBlock
	bottomBlock.Upsave = top.UpsaveTo
	top.Base = bottom

	db := New()
	db.AddRing(bottom)
	db.AddRing(top)

	next, err := db.Update(1, []objectmodel.Edit{{Op: objectmodel.EditSet, Path: "v", Value: objectmodel.IntValue(2)}}, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if next.Data["v"].Int != 2 {
		t.Fatalf("got %d, want 2", next.Data["v"].Int)
	}

	res, err := db.Select(1, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if res.Object.Data["v"].Int != 2 {
		t.Fatalf("got %d, want 2 after escalated update", res.Object.Data["v"].Int)
	}
}

func TestDeleteMissingReturnsFalseNotError(t *testing.T) {
	db := twoRingDB(t)
	found, err := db.Delete(99, "")
	if err != nil {
		t.Fatalf("delete of missing id returned error: %v", err)
	}
	if found {
		t.Fatalf("expected found=false for a missing id")
	}
}

func TestScanMergesAcrossRingsTopWins(t *testing.T) {
	bottom := newRing(t, "bottom", block.Zones{}, true, nil, []block.InsertEntry{
		{ExplicitID: 1, HasExplicitID: true, Data: map[string]objectmodel.Value{"n": objectmodel.StringValue("old")}},
		{ExplicitID: 2, HasExplicitID: true, Data: map[string]objectmodel.Value{"n": objectmodel.StringValue("only-bottom")}},
	})
	top := newRing(t, "top", block.Zones{}, false, bottom, []block.InsertEntry{
		{ExplicitID: 1, HasExplicitID: true, Data: map[string]objectmodel.Value{"n": objectmodel.StringValue("new")}},
	})

	db := New()
	db.AddRing(bottom)
	db.AddRing(top)

	it, err := db.Scan(storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	defer it.Close()

	var ids []int64
	seen := map[int64]string{}
	for it.Next() {
		rec := it.Record()
		id, err := block.DecodeID(rec.Key)
		if err != nil {
			t.Fatalf("decode id: %v", err)
		}
		obj, err := block.DecodeObject(id, rec.Value)
		if err != nil {
			t.Fatalf("decode object: %v", err)
		}
		ids = append(ids, id)
		seen[id] = obj.Data["n"].String
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	if len(ids) != 2 {
		t.Fatalf("got %d records, want 2 (duplicate id 1 deduplicated)", len(ids))
	}
	if seen[1] != "new" {
		t.Fatalf("got %q for id 1, want %q (top ring wins)", seen[1], "new")
	}
	if seen[2] != "only-bottom" {
		t.Fatalf("got %q for id 2, want %q", seen[2], "only-bottom")
	}
}

func TestRebuildIndexesAndCreateIndex(t *testing.T) {
	db := twoRingDB(t)
	for _, cat := range []int64{7, 7, 8} {
		if _, err := db.Insert(map[string]objectmodel.Value{"category": objectmodel.IntValue(cat)}, InsertOptions{
			CategoryID: cat, HasCategory: true,
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	op := operator.NewIndexOperator([]operator.FieldSpec{{Name: "category", Type: keycodec.IntType{}}}, nil)
	seq := sequence.NewDerived("by_category", op)
	seq.AddBlock(&block.DerivedBlock{Name: "by_category", Store: storage.NewMemoryStore()}, nil)

	if err := db.CreateIndex("top", seq); err != nil {
		t.Fatalf("create index: %v", err)
	}

	it, err := seq.Scan(storage.ScanOptions{})
	if err != nil {
		t.Fatalf("scan index: %v", err)
	}
	defer it.Close()
	count := 0
	for it.Next() {
		count++
	}
	if count != 3 {
		t.Fatalf("got %d index entries after create-index, want 3", count)
	}

	if err := db.RebuildIndexes("top"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
}

func TestAdminReinsertMovesBetweenRings(t *testing.T) {
	db := twoRingDB(t)
	archive := newRing(t, "archive", block.Zones{}, false, nil, nil)
	db.AddRing(archive)

	id, err := db.Insert(map[string]objectmodel.Value{"n": objectmodel.StringValue("x")}, InsertOptions{Ring: "top"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	newIDs, err := db.AdminReinsert([]int64{id}, "archive")
	if err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if newIDs[0] != id {
		t.Fatalf("got %d, want id preserved (%d)", newIDs[0], id)
	}

	res, err := db.Select(id, "archive")
	if err != nil {
		t.Fatalf("select from archive after reinsert: %v", err)
	}
	if res.Object.Data["n"].String != "x" {
		t.Fatalf("data lost across reinsert: got %q", res.Object.Data["n"].String)
	}

	if _, err := db.Select(id, "top"); err == nil {
		t.Fatalf("expected id to be gone from top ring after reinsert")
	}
}
