package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dreamware/ringdb/internal/block"
	"github.com/dreamware/ringdb/internal/engineerr"
	"github.com/dreamware/ringdb/internal/objectmodel"
	"github.com/dreamware/ringdb/internal/registry"
	"github.com/dreamware/ringdb/internal/ring"
	"github.com/dreamware/ringdb/internal/sequence"
	"github.com/dreamware/ringdb/internal/storage"
)

// Database is the top-level façade over a ring stack: it resolves a
// caller's optional {ring} hint to a concrete *ring.Ring, and otherwise
// defaults to the top-most ring.
type Database struct {
	mu       sync.RWMutex
	rings    map[string]*ring.Ring
	stack    []*ring.Ring // top-first
	registry *registry.Registry
}

// New returns an empty Database; rings are attached with AddRing from
// the bottom up, since each AddRing call makes its ring the new top of
// the stack.
func New() *Database {
	return &Database{rings: make(map[string]*ring.Ring)}
}

// UseRegistry attaches a process-local object cache: Select consults it
// before descending the stack, and Update/Delete keep it coherent.
func (db *Database) UseRegistry(r *registry.Registry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.registry = r
}

// AddRing registers r as the new top of the stack and wires its cascade
// delete callback back into this Database: a cascade delete re-enters
// the Database's normal delete path, since the target may live in any
// ring.
func (db *Database) AddRing(r *ring.Ring) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r.CascadeDelete = db.cascadeDeleteByID
	db.rings[r.Name] = r
	db.stack = append([]*ring.Ring{r}, db.stack...)
}

func (db *Database) cascadeDeleteByID(id int64) error {
	_, err := db.Delete(id, "")
	return err
}

func (db *Database) top() (*ring.Ring, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if len(db.stack) == 0 {
		return nil, fmt.Errorf("engine: no rings configured")
	}
	return db.stack[0], nil
}

func (db *Database) ringByName(name string) (*ring.Ring, error) {
	if name == "" {
		return db.top()
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.rings[name]
	if !ok {
		return nil, fmt.Errorf("engine: unknown ring %q", name)
	}
	return r, nil
}

// Select implements `select(id, {ring?})`. When a registry is attached,
// a cache hit skips the ring search entirely; a miss populates it.
func (db *Database) Select(id int64, ringName string) (*ring.Result, error) {
	if db.registry != nil {
		if obj := db.registry.Get(id); obj != nil {
			return &ring.Result{Object: obj}, nil
		}
	}
	r, err := db.ringByName(ringName)
	if err != nil {
		return nil, err
	}
	res, err := r.Select(id)
	if err != nil {
		return nil, err
	}
	if db.registry != nil {
		_ = db.registry.Set(res.Object)
	}
	return res, nil
}

// InsertOptions carries insert's optional parameters.
type InsertOptions struct {
	Ring          string
	ExplicitID    int64
	HasExplicitID bool
	CategoryID    int64
	HasCategory   bool
}

// Insert implements `insert(data, {ring?, id?}) → id`.
func (db *Database) Insert(data map[string]objectmodel.Value, opts InsertOptions) (int64, error) {
	r, err := db.ringByName(opts.Ring)
	if err != nil {
		return 0, err
	}
	ids, err := r.Insert([]block.InsertEntry{{
		Data:          data,
		CategoryID:    opts.CategoryID,
		HasCategory:   opts.HasCategory,
		ExplicitID:    opts.ExplicitID,
		HasExplicitID: opts.HasExplicitID,
	}}, nil)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// Update implements `update(id, edits, {ring?})`: edits are applied in
// memory by the object system's vocabulary (objectmodel.ApplyEdits);
// the storage core treats the list as opaque.
func (db *Database) Update(id int64, edits []objectmodel.Edit, ringName string) (*objectmodel.WebObject, error) {
	r, err := db.ringByName(ringName)
	if err != nil {
		return nil, err
	}
	next, err := r.Update(id, func(prev *objectmodel.WebObject) (*objectmodel.WebObject, error) {
		n := prev.Clone()
		n.Data = objectmodel.ApplyEdits(prev.Data, edits)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	if db.registry != nil {
		_ = db.registry.Set(next)
	}
	return next, nil
}

// Delete implements `delete(id, {ring?}) → 0 | 1`: false/0 means id was
// not found anywhere in the stack, which is not itself an error.
func (db *Database) Delete(id int64, ringName string) (bool, error) {
	r, err := db.ringByName(ringName)
	if err != nil {
		return false, err
	}
	_, err = r.Delete(id)
	if err != nil {
		if errors.Is(err, engineerr.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	if db.registry != nil {
		db.registry.Drop(id)
	}
	return true, nil
}

// Stats reports key count and total value bytes for the named ring (or
// the top ring), summed across its data blocks and derived sequences.
func (db *Database) Stats(ringName string) (storage.StoreStats, error) {
	r, err := db.ringByName(ringName)
	if err != nil {
		return storage.StoreStats{}, err
	}
	return r.Stats(), nil
}

// RebuildIndexes erases and repopulates every derived sequence of the
// named ring (or the top ring) by scanning its data sequence from
// scratch. Idempotent and restartable.
func (db *Database) RebuildIndexes(ringName string) error {
	r, err := db.ringByName(ringName)
	if err != nil {
		return err
	}
	return rebuildDerived(r)
}

func rebuildDerived(r *ring.Ring) error {
	for _, d := range r.Derived {
		for _, b := range d.Blocks() {
			dblk, ok := b.(*block.DerivedBlock)
			if !ok {
				continue
			}
			if err := dblk.Erase(); err != nil {
				return err
			}
		}
	}

	it, err := r.Data.Scan(storage.ScanOptions{})
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		rec := it.Record()
		id, err := block.DecodeID(rec.Key)
		if err != nil {
			return err
		}
		obj, err := block.DecodeObject(id, rec.Value)
		if err != nil {
			return err
		}
		for _, d := range r.Derived {
			// Propagation errors during rebuild are fatal (unlike live
			// propagation, which logs and continues): a failed rebuild
			// should report failure so the caller can retry rather than
			// silently leave the index half-populated.
			if err := d.CaptureChange(rec.Key, nil, obj); err != nil {
				return fmt.Errorf("engine: rebuilding index for record %d: %w", id, err)
			}
		}
	}
	return it.Err()
}

// CreateIndex attaches a new derived sequence to the named ring (or the
// top ring) and immediately rebuilds it from the ring's current data.
func (db *Database) CreateIndex(ringName string, seq *sequence.DerivedSequence) error {
	r, err := db.ringByName(ringName)
	if err != nil {
		return err
	}
	for _, b := range seq.Blocks() {
		dblk, ok := b.(*block.DerivedBlock)
		if !ok {
			continue
		}
		if err := dblk.Open(); err != nil {
			return err
		}
	}
	r.Derived = append(r.Derived, seq)
	return rebuildDerived(r)
}

// AdminReinsert moves each id to targetRingName, preserving its id and
// data, for administrative reshaping of the ring stack. Each id must
// currently exist somewhere in the stack.
func (db *Database) AdminReinsert(ids []int64, targetRingName string) ([]int64, error) {
	target, err := db.ringByName(targetRingName)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		db.mu.RLock()
		stack := append([]*ring.Ring(nil), db.stack...)
		db.mu.RUnlock()
		var res *ring.Result
		err := engineerr.NewObjectNotFound(id)
		for _, r := range stack {
			res, err = r.Select(id)
			if err == nil || !errors.Is(err, engineerr.ErrObjectNotFound) {
				break
			}
		}
		if err != nil {
			return nil, err
		}
		if _, err := db.Delete(id, res.Ring); err != nil {
			return nil, err
		}
		newIDs, err := target.Insert([]block.InsertEntry{{
			ExplicitID:    id,
			HasExplicitID: true,
			Data:          res.Object.Data,
			CategoryID:    res.Object.CategoryID,
			HasCategory:   res.Object.HasCat,
		}}, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, newIDs[0])
	}
	return out, nil
}
