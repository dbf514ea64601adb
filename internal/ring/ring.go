package ring

import (
	"errors"
	"fmt"
	"math"

	"github.com/dreamware/ringdb/internal/block"
	"github.com/dreamware/ringdb/internal/engineerr"
	"github.com/dreamware/ringdb/internal/objectmodel"
	"github.com/dreamware/ringdb/internal/sequence"
	"github.com/dreamware/ringdb/internal/storage"
)

// DeleteByID re-enters the top of the database's normal delete path for
// a cascade-deleted id. It is supplied by whoever assembles the ring
// stack (the Database), since a cascade target may live in any ring.
type DeleteByID func(id int64) error

// Result pairs a selected object with the {ring, block} metadata select
// annotates its response with.
type Result struct {
	Object *objectmodel.WebObject
	Ring   string
	Block  string
}

// Ring is one layer of the stack. Base is the ring immediately below
// this one in read-through order, or nil at the bottom. InsertBlock is
// the single DataBlock that owns this ring's declared insert zones and
// serves as the allocation point for Insert.
type Ring struct {
	Name     string
	ReadOnly bool
	Base     *Ring

	Data    *sequence.DataSequence
	Derived []*sequence.DerivedSequence

	InsertBlock *block.DataBlock

	// UpsaveTarget is the nearest writable ring above this one in the
	// stack. Set only on read-only rings; Open wires every DataBlock's
	// Upsave callback to UpsaveTarget.UpsaveTo.
	UpsaveTarget *Ring

	// CascadeDelete re-enters the database's delete path for strong
	// references dropped by a change in this ring.
	CascadeDelete DeleteByID
}

// Open validates this ring's zone declarations against the rings below
// it, wires every DataBlock's Propagate and (for read-only rings) Upsave
// callbacks, and opens every block in the data and derived sequences. A
// failure here is fatal.
func (r *Ring) Open() error {
	if r.InsertBlock != nil {
		if err := r.InsertBlock.Zones.Validate(); err != nil {
			return fmt.Errorf("ring %s: %w", r.Name, err)
		}
		if err := r.validateAgainstStack(); err != nil {
			return err
		}
	}

	for _, b := range r.Data.Blocks() {
		db, ok := b.(*block.DataBlock)
		if !ok {
			return fmt.Errorf("ring %s: data sequence block is not a DataBlock", r.Name)
		}
		db.Propagate = r.propagateChange
		if r.ReadOnly && r.UpsaveTarget != nil {
			db.Upsave = r.UpsaveTarget.UpsaveTo
		}
		if err := db.Open(); err != nil {
			return fmt.Errorf("ring %s: opening data block %s: %w", r.Name, db.Name, err)
		}
	}

	for _, seq := range r.Derived {
		for _, b := range seq.Blocks() {
			dbl, ok := b.(*block.DerivedBlock)
			if !ok {
				return fmt.Errorf("ring %s: derived sequence block is not a DerivedBlock", r.Name)
			}
			if err := dbl.Open(); err != nil {
				return fmt.Errorf("ring %s: opening derived block %s: %w", r.Name, dbl.Name, err)
			}
		}
	}
	return nil
}

// validateAgainstStack enforces that this ring's insert zones don't
// overlap any exclusive or sharded zone of a ring below it.
func (r *Ring) validateAgainstStack() error {
	z := r.InsertBlock.Zones
	for below := r.Base; below != nil; below = below.Base {
		if below.InsertBlock == nil {
			continue
		}
		bz := below.InsertBlock.Zones

		if z.C != nil && bz.C != nil && !z.Shard.Disjoint(bz.Shard) {
			return fmt.Errorf("ring %s: sharded zone overlaps ring %s's sharded zone", r.Name, below.Name)
		}

		if z.A != nil {
			if bz.A != nil && rangesOverlap(*z.A, *z.B, *bz.A, *bz.B) {
				return fmt.Errorf("ring %s: exclusive zone overlaps ring %s's exclusive zone", r.Name, below.Name)
			}
			if bz.C != nil && rangesOverlap(*z.A, *z.B, *bz.C, math.MaxInt64) {
				return fmt.Errorf("ring %s: exclusive zone overlaps ring %s's sharded zone", r.Name, below.Name)
			}
		}
	}
	return nil
}

func rangesOverlap(aStart, aEnd, bStart, bEnd int64) bool {
	return aStart < bEnd && bStart < aEnd
}

// Select implements the read-through routing: locate the
// owning block in this ring, and on a miss descend to Base until a ring
// answers or the bottom is reached.
func (r *Ring) Select(id int64) (*Result, error) {
	b, err := r.Data.FindDataBlock(id)
	if err != nil {
		return nil, err
	}
	obj, err := b.Select(id)
	if err != nil {
		if errors.Is(err, block.ForwardDown) {
			if r.Base == nil {
				return nil, engineerr.NewObjectNotFound(id)
			}
			return r.Base.Select(id)
		}
		return nil, err
	}
	return &Result{Object: obj, Ring: r.Name, Block: b.Name}, nil
}

// Scan streams this ring's own data sequence. Merging scans across the
// ring stack (top-ring-wins on duplicate ids) is the Database's job, not
// a single ring's.
func (r *Ring) Scan(opts storage.ScanOptions) (storage.Iterator, error) {
	return r.Data.Scan(opts)
}

// Stats sums key count and value bytes across this ring's data blocks
// and every derived sequence's blocks, for monitoring and capacity
// planning.
func (r *Ring) Stats() storage.StoreStats {
	var out storage.StoreStats
	add := func(s storage.StoreStats) {
		out.Keys += s.Keys
		out.Bytes += s.Bytes
	}
	for _, b := range r.Data.Blocks() {
		add(b.Stats())
	}
	for _, d := range r.Derived {
		for _, b := range d.Blocks() {
			add(b.Stats())
		}
	}
	return out
}

// Update locates the authoritative copy of id by descending the stack,
// then applies edits there: a writable ring persists locally, a
// read-only ring escalates the computed next value to UpsaveTarget.
func (r *Ring) Update(id int64, applyEdits func(prev *objectmodel.WebObject) (*objectmodel.WebObject, error)) (*objectmodel.WebObject, error) {
	b, err := r.Data.FindDataBlock(id)
	if err != nil {
		return nil, err
	}
	next, err := b.Update(id, applyEdits)
	if err != nil {
		if errors.Is(err, block.ForwardDown) {
			if r.Base == nil {
				return nil, engineerr.NewObjectNotFound(id)
			}
			return r.Base.Update(id, applyEdits)
		}
		return nil, err
	}
	return next, nil
}

// UpsaveTo writes data at id directly into this ring's owning block. It
// is wired as the Upsave callback of every DataBlock belonging to a
// read-only ring beneath this one.
func (r *Ring) UpsaveTo(id int64, data *objectmodel.WebObject) error {
	b, err := r.Data.FindDataBlock(id)
	if err != nil {
		return err
	}
	return b.UpsaveLocal(id, data)
}

// Delete locates id by descending the stack, then removes it from the
// ring where it actually lives.
func (r *Ring) Delete(id int64) (*objectmodel.WebObject, error) {
	b, err := r.Data.FindDataBlock(id)
	if err != nil {
		return nil, err
	}
	prev, err := b.Delete(id)
	if err != nil {
		if errors.Is(err, block.ForwardDown) {
			if r.Base == nil {
				return nil, engineerr.NewObjectNotFound(id)
			}
			return r.Base.Delete(id)
		}
		return nil, err
	}
	return prev, nil
}

// Insert allocates and persists entries via this ring's designated
// insert block.
func (r *Ring) Insert(entries []block.InsertEntry, setup func(obj *objectmodel.WebObject, enqueue func(block.InsertEntry)) error) ([]int64, error) {
	if r.InsertBlock == nil {
		return nil, fmt.Errorf("ring %s: no insert block configured", r.Name)
	}
	return r.InsertBlock.Insert(entries, setup)
}

// propagateChange runs cascade delete for dropped strong references,
// then capture_change on every derived sequence.
func (r *Ring) propagateChange(key []byte, prev, next *objectmodel.WebObject) error {
	if err := r.cascadeDelete(prev, next); err != nil {
		return err
	}
	for _, d := range r.Derived {
		if err := d.CaptureChange(key, prev, next); err != nil {
			return err
		}
	}
	return nil
}

func (r *Ring) cascadeDelete(prev, next *objectmodel.WebObject) error {
	if prev == nil || r.CascadeDelete == nil {
		return nil
	}
	prevStrong := objectmodel.CollectRefs(prev.Data, true)
	if len(prevStrong) == 0 {
		return nil
	}
	var nextAll []objectmodel.PathRef
	if next != nil {
		nextAll = objectmodel.CollectRefs(next.Data, false)
	}
	for _, pr := range prevStrong {
		if survivesCascade(pr, nextAll) {
			continue
		}
		if err := r.CascadeDelete(pr.Ref.ID); err != nil {
			return err
		}
	}
	return nil
}

// survivesCascade reports the two conditions that exempt a dropped
// strong reference from cascade delete: the referenced id is still held
// strongly anywhere in next, or the exact (path, id) pair still exists
// in next regardless of strength.
func survivesCascade(pr objectmodel.PathRef, nextAll []objectmodel.PathRef) bool {
	for _, nr := range nextAll {
		if nr.Ref.ID == pr.Ref.ID && nr.Ref.Strong {
			return true
		}
	}
	for _, nr := range nextAll {
		if nr.Path == pr.Path && nr.Ref.ID == pr.Ref.ID {
			return true
		}
	}
	return false
}
