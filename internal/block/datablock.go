package block

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/ringdb/internal/engineerr"
	"github.com/dreamware/ringdb/internal/keycodec"
	"github.com/dreamware/ringdb/internal/objectmodel"
	"github.com/dreamware/ringdb/internal/storage"
)

// InsertMode selects the ID allocation policy used by DataBlock.Insert.
type InsertMode int

const (
	Incremental InsertMode = iota
	Compact
)

// ForwardDown is returned by DataBlock commands to signal that the ring
// does not hold this id and the caller should descend to base_ring,
// generalized to every command that can miss locally.
var ForwardDown = errors.New("block: forward to base ring")

// idSchema turns a raw id into the binary key DataBlock uses internally.
// A DataBlock's keyspace is always a single integer field, matching the
// data-record model.
var idSchema = keycodec.NewSchema(keycodec.IntType{})

func encodeID(id int64) []byte {
	k, _ := idSchema.EncodeKey([]any{id})
	return k
}

// DecodeID is the inverse of a DataBlock's internal key encoding, for
// callers that scan a data sequence's raw records directly (the engine's
// index rebuild).
func DecodeID(key []byte) (int64, error) {
	vals, err := idSchema.DecodeKey(key)
	if err != nil {
		return 0, err
	}
	return vals[0].(int64), nil
}

// PropagateFunc is invoked after a successful local write with the
// (prev, next) pair at the affected key, letting the owning ring drive
// cascade delete and derived-sequence capture. prev or
// next may be nil.
type PropagateFunc func(key []byte, prev, next *objectmodel.WebObject) error

// UpsaveFunc escalates a write to the nearest writable ring above this
// one.
type UpsaveFunc func(id int64, data *objectmodel.WebObject) error

// Validator is an injection point for the object system's schema
// validation; the storage core treats it as opaque and merely calls it
// before committing a write.
type Validator func(obj *objectmodel.WebObject) error

// DataBlock owns one Store holding primary (not derived) records. It
// allocates ids under one of two policies, enforces the ring's insert
// zones, and serializes update/delete/upsave per id.
type DataBlock struct {
	Name       string
	Store      storage.Store
	ReadOnly   bool
	Zones      Zones
	Mode       InsertMode
	FlushDelay time.Duration
	Validate   Validator
	Propagate  PropagateFunc
	Upsave     UpsaveFunc

	locks *lockMap
	flush *flushState

	mu            sync.Mutex
	autoincrement int64
	reserved      map[int64]struct{}
}

// Open seeds the block's autoincrement counter from the store's current
// maximum key's `open() -> max_id?`.
func (b *DataBlock) Open() error {
	b.locks = newLockMap()
	b.flush = newFlushState(b.Store, b.FlushDelay)
	b.reserved = make(map[int64]struct{})

	maxKey, err := b.Store.Open()
	if err != nil {
		return err
	}
	if maxKey == nil {
		return nil
	}
	vals, err := idSchema.DecodeKey(maxKey)
	if err != nil {
		return fmt.Errorf("datablock %s: decoding max key: %w", b.Name, err)
	}
	b.autoincrement = vals[0].(int64)
	return nil
}

// Select implements `select(id, req)`: get(encode(id)), or ForwardDown if
// absent. The returned object is not annotated here; annotation with
// {ring, block} metadata is the Ring's responsibility since a DataBlock
// has no notion of its own ring name beyond what its caller supplies.
func (b *DataBlock) Select(id int64) (*objectmodel.WebObject, error) {
	raw, err := b.Store.Get(encodeID(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ForwardDown
		}
		return nil, err
	}
	obj, err := decodeObject(id, raw)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Has reports whether id is present locally, without decoding it.
func (b *DataBlock) Has(id int64) (bool, error) {
	_, err := b.Store.Get(encodeID(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// InsertEntry is one record of a batch insert request.
type InsertEntry struct {
	// ProvisionalID is this entry's negative id within the batch, used
	// to rectify references among sibling entries (0 if this entry is
	// never referenced by provisional id).
	ProvisionalID int64
	Data          map[string]objectmodel.Value
	CategoryID    int64
	HasCategory   bool

	// ExplicitID requests a specific final id (administrative reinsert);
	// HasExplicitID must be set for ExplicitID to take effect.
	ExplicitID    int64
	HasExplicitID bool
}

// Insert implements batch insert: ids are pre-assigned by the
// configured policy, provisional references among the batch are
// rectified, then setup (if provided) is allowed to enqueue further
// newborn objects until the queue drains, after which each object is
// validated and persisted in order.
//
// setup may be nil. When non-nil it is called once per object (including
// ones it enqueues itself) before that object is persisted.
func (b *DataBlock) Insert(entries []InsertEntry, setup func(obj *objectmodel.WebObject, enqueue func(InsertEntry)) error) ([]int64, error) {
	if b.ReadOnly {
		return nil, engineerr.NewDataAccessError("insert on a read-only ring with no writable ring above")
	}

	provFinal := make(map[int64]int64, len(entries))
	queue := make([]*objectmodel.WebObject, 0, len(entries))

	b.mu.Lock()
	assign := func(e InsertEntry) (int64, error) {
		if e.HasExplicitID {
			if ok, err := b.Has(e.ExplicitID); err != nil {
				return 0, err
			} else if ok {
				return 0, engineerr.NewDataConsistencyError(fmt.Sprintf("id %d already exists", e.ExplicitID))
			}
			if _, reserved := b.reserved[e.ExplicitID]; reserved {
				return 0, engineerr.NewDataConsistencyError(fmt.Sprintf("id %d already reserved in this batch", e.ExplicitID))
			}
			b.reserved[e.ExplicitID] = struct{}{}
			if e.ExplicitID > b.autoincrement {
				b.autoincrement = e.ExplicitID
			}
			return e.ExplicitID, nil
		}
		id, err := b.nextID()
		if err != nil {
			return 0, err
		}
		b.reserved[id] = struct{}{}
		return id, nil
	}

	for _, e := range entries {
		id, err := assign(e)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		if e.ProvisionalID != 0 {
			provFinal[e.ProvisionalID] = id
		}
		queue = append(queue, &objectmodel.WebObject{
			ID:         id,
			CategoryID: e.CategoryID,
			HasCat:     e.HasCategory,
			Data:       rectify(e.Data, provFinal),
		})
	}
	b.mu.Unlock()

	ids := make([]int64, 0, len(queue))
	for i := 0; i < len(queue); i++ {
		obj := queue[i]
		obj.Data = rectify(obj.Data, provFinal)

		if setup != nil {
			enqueue := func(e InsertEntry) {
				b.mu.Lock()
				id, err := b.nextID()
				if err != nil {
					b.mu.Unlock()
					return
				}
				b.reserved[id] = struct{}{}
				b.mu.Unlock()
				if e.ProvisionalID != 0 {
					provFinal[e.ProvisionalID] = id
				}
				queue = append(queue, &objectmodel.WebObject{
					ID:         id,
					CategoryID: e.CategoryID,
					HasCat:     e.HasCategory,
					Data:       rectify(e.Data, provFinal),
				})
			}
			if err := setup(obj, enqueue); err != nil {
				return nil, err
			}
		}

		if b.Validate != nil {
			if err := b.Validate(obj); err != nil {
				return nil, engineerr.AsDataAccess(err)
			}
		}
		obj.Version = 1

		if err := b.persist(obj); err != nil {
			return nil, err
		}
		if b.Propagate != nil {
			if err := b.Propagate(encodeID(obj.ID), nil, obj); err != nil {
				enginelogPropagateFailure(b.Name, obj.ID, err)
			}
		}
		ids = append(ids, obj.ID)
	}

	return ids, nil
}

// rectify replaces any provisional reference embedded in data whose
// negative id matches a sibling entry's ProvisionalID with a final
// reference to that sibling's assigned id.
func rectify(data map[string]objectmodel.Value, provFinal map[int64]int64) map[string]objectmodel.Value {
	out := make(map[string]objectmodel.Value, len(data))
	for k, v := range data {
		out[k] = rectifyValue(v, provFinal)
	}
	return out
}

func rectifyValue(v objectmodel.Value, provFinal map[int64]int64) objectmodel.Value {
	switch v.Kind {
	case objectmodel.KindRef:
		if v.Ref.Provisional {
			if final, ok := provFinal[v.Ref.ID]; ok {
				return objectmodel.RefValue(objectmodel.NewRef(final, v.Ref.Strong))
			}
		}
		return v
	case objectmodel.KindArray:
		out := make([]objectmodel.Value, len(v.Array))
		for i, e := range v.Array {
			out[i] = rectifyValue(e, provFinal)
		}
		return objectmodel.ArrayValue(out)
	default:
		return v
	}
}

// nextID allocates one id under the block's configured policy. Callers
// must hold b.mu.
func (b *DataBlock) nextID() (int64, error) {
	switch b.Mode {
	case Compact:
		id, err := b.nextCompactID()
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, engineerr.ErrNotImplemented) {
			return 0, err
		}
		fallthrough
	default:
		return b.nextIncrementalID(), nil
	}
}

func (b *DataBlock) nextIncrementalID() int64 {
	auto := b.autoincrement + 1
	start := int64(1)
	if b.Zones.A != nil {
		start = *b.Zones.A
	}
	id := auto
	if id < start {
		id = start
	}
	if b.Zones.A != nil && id < *b.Zones.B {
		b.autoincrement = max64(b.autoincrement, id)
		return id
	}

	cStart := int64(0)
	if b.Zones.C != nil {
		cStart = *b.Zones.C
	}
	id = auto
	if id < cStart {
		id = cStart
	}
	id = b.Zones.fixUpwards(id)
	b.autoincrement = max64(b.autoincrement, id)
	return id
}

// nextCompactID implements the O(n) compact policy, restricted to
// MemoryStore.
func (b *DataBlock) nextCompactID() (int64, error) {
	if _, ok := b.Store.(*storage.MemoryStore); !ok {
		return 0, engineerr.NewNotImplemented("compact insert mode requires a MemoryStore")
	}
	if _, full := b.reserved[b.autoincrement]; full && b.autoincrement != 0 {
		return 0, engineerr.NewNotImplemented("compact policy exhausted, falling back to incremental")
	}

	start := int64(1)
	if b.Zones.A != nil {
		start = *b.Zones.A
	}
	for id := start; ; id++ {
		if b.Zones.B != nil && b.Zones.C != nil && id >= *b.Zones.B && id < *b.Zones.C {
			id = *b.Zones.C
		}
		if b.Zones.C != nil && id >= *b.Zones.C && !b.Zones.matchesShard(id) {
			continue
		}
		if _, reserved := b.reserved[id]; reserved {
			continue
		}
		if _, err := b.Store.Get(encodeID(id)); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return 0, err
		}
		return id, nil
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (b *DataBlock) persist(obj *objectmodel.WebObject) error {
	raw, err := encodeObject(obj)
	if err != nil {
		return err
	}
	if err := b.Store.Put(encodeID(obj.ID), raw); err != nil {
		return err
	}
	return b.flush.Flush(true)
}

// Update implements `update(id, edits, req)` under lock(id). applyEdits
// computes next from prev; it is supplied by the caller so the storage
// core stays decoupled from the object system's edit-op vocabulary.
func (b *DataBlock) Update(id int64, applyEdits func(prev *objectmodel.WebObject) (*objectmodel.WebObject, error)) (*objectmodel.WebObject, error) {
	release := b.locks.Lock(id)

	raw, err := b.Store.Get(encodeID(id))
	if err != nil {
		release()
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ForwardDown
		}
		return nil, err
	}
	prev, err := decodeObject(id, raw)
	if err != nil {
		release()
		return nil, err
	}

	next, err := applyEdits(prev)
	if err != nil {
		release()
		return nil, err
	}
	next.Version = prev.Version + 1

	if b.Validate != nil {
		if err := b.Validate(next); err != nil {
			release()
			return nil, engineerr.AsDataAccess(err)
		}
	}

	if b.ReadOnly {
		if b.Upsave == nil {
			release()
			return nil, engineerr.NewDataAccessError("update on read-only ring with no writable ring above")
		}
		if err := b.Upsave(id, next); err != nil {
			release()
			return nil, err
		}
	} else {
		if err := b.persist(next); err != nil {
			release()
			return nil, err
		}
	}

	// Release id's lock before cascading: a cascade delete triggered by
	// this change may transitively target id itself (mutual strong
	// references), and locks.Lock is not reentrant on the same goroutine.
	release()

	if b.Propagate != nil {
		if err := b.Propagate(encodeID(id), prev, next); err != nil {
			enginelogPropagateFailure(b.Name, id, err)
		}
	}
	return next, nil
}

// UpsaveLocal implements `upsave(id, data, req)` under lock(id): the
// read-through invariant requires id to be absent locally; if present,
// this is a DataConsistencyError.
func (b *DataBlock) UpsaveLocal(id int64, data *objectmodel.WebObject) error {
	release := b.locks.Lock(id)
	defer release()

	if ok, err := b.Has(id); err != nil {
		return err
	} else if ok {
		return engineerr.NewDataConsistencyError(fmt.Sprintf("upsave collision on id %d", id))
	}
	return b.persist(data)
}

// Delete implements `delete(id, req)` under lock(id). If absent locally,
// returns ForwardDown; if present on a read-only ring, DataAccessError.
func (b *DataBlock) Delete(id int64) (*objectmodel.WebObject, error) {
	release := b.locks.Lock(id)

	raw, err := b.Store.Get(encodeID(id))
	if err != nil {
		release()
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ForwardDown
		}
		return nil, err
	}
	if b.ReadOnly {
		release()
		return nil, engineerr.NewDataAccessError("delete on a read-only ring")
	}
	prev, err := decodeObject(id, raw)
	if err != nil {
		release()
		return nil, err
	}
	if _, err := b.Store.Del(encodeID(id)); err != nil {
		release()
		return nil, err
	}
	if err := b.flush.Flush(true); err != nil {
		release()
		return nil, err
	}

	// Release id's lock before cascading: this delete may transitively
	// cascade back into id itself (mutual strong references), and
	// locks.Lock is not reentrant on the same goroutine.
	release()

	if b.Propagate != nil {
		if err := b.Propagate(encodeID(id), prev, nil); err != nil {
			enginelogPropagateFailure(b.Name, id, err)
		}
	}
	return prev, nil
}

func (b *DataBlock) Scan(opts storage.ScanOptions) (storage.Iterator, error) {
	return b.Store.Scan(opts)
}

func (b *DataBlock) Stats() storage.StoreStats {
	return b.Store.Stats()
}

func (b *DataBlock) Erase() error {
	if err := b.Store.Erase(); err != nil {
		return err
	}
	b.mu.Lock()
	b.autoincrement = 0
	b.reserved = make(map[int64]struct{})
	b.mu.Unlock()
	return nil
}

func (b *DataBlock) Flush(withDelay bool) error {
	return b.flush.Flush(withDelay)
}
