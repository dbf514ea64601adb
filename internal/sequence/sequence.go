package sequence

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/ringdb/internal/block"
	"github.com/dreamware/ringdb/internal/objectmodel"
	"github.com/dreamware/ringdb/internal/operator"
	"github.com/dreamware/ringdb/internal/storage"
)

// Sequence is an ordered collection of blocks covering the entire binary
// key range, partitioned by sorted split points. splits[i]
// is the inclusive lower bound of blocks[i+1]; blocks[0] covers
// everything below splits[0].
type Sequence struct {
	Name     string
	Operator *operator.Operator

	mu     sync.RWMutex
	blocks []block.Block
	splits [][]byte
}

// New returns an empty sequence for op. Blocks are added with AddBlock in
// ascending key order; a freshly constructed Sequence with no blocks
// added yet cannot route any key.
func New(name string, op *operator.Operator) *Sequence {
	return &Sequence{Name: name, Operator: op}
}

// AddBlock appends b as the new top end of the key range, splitting at
// splitKey (the inclusive lower bound of b). The first block added must
// be given a nil splitKey.
func (s *Sequence) AddBlock(b block.Block, splitKey []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocks) > 0 {
		candidate := append(append([][]byte{}, s.splits...), splitKey)
		if !slices.IsSortedFunc(candidate, bytes.Compare) {
			panic(fmt.Sprintf("sequence %s: AddBlock called with a split key out of ascending order", s.Name))
		}
		s.splits = append(s.splits, splitKey)
	}
	s.blocks = append(s.blocks, b)
}

// FindBlock returns the unique block whose [split_prev, split_this)
// range contains key.
func (s *Sequence) FindBlock(key []byte) (block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.blocks) == 0 {
		return nil, fmt.Errorf("sequence %s: no blocks configured", s.Name)
	}
	i := sort.Search(len(s.splits), func(i int) bool {
		return bytes.Compare(key, s.splits[i]) < 0
	})
	return s.blocks[i], nil
}

// Blocks returns a snapshot of the sequence's blocks in ascending key
// order, for callers (notably a Ring at open time) that need to inspect
// or configure every block directly.
func (s *Sequence) Blocks() []block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]block.Block(nil), s.blocks...)
}

// Scan streams records across every block in ascending key order,
// merging block-local scans so callers see one continuous ordered
// stream. Boundary behavior mirrors: keys are returned in
// strict byte order with no duplicates across a split point.
func (s *Sequence) Scan(opts storage.ScanOptions) (storage.Iterator, error) {
	s.mu.RLock()
	blocks := append([]block.Block(nil), s.blocks...)
	s.mu.RUnlock()

	var all []storage.Record
	for _, b := range blocks {
		it, err := b.Scan(opts)
		if err != nil {
			return nil, err
		}
		for it.Next() {
			all = append(all, it.Record())
		}
		if err := it.Err(); err != nil {
			it.Close()
			return nil, err
		}
		it.Close()
	}
	sort.Slice(all, func(i, j int) bool { return bytes.Compare(all[i].Key, all[j].Key) < 0 })
	if opts.Reverse {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return &sliceIterator{recs: all, idx: -1}, nil
}

type sliceIterator struct {
	recs []storage.Record
	idx  int
}

func (it *sliceIterator) Next() bool           { it.idx++; return it.idx < len(it.recs) }
func (it *sliceIterator) Record() storage.Record { return it.recs[it.idx] }
func (it *sliceIterator) Err() error           { return nil }
func (it *sliceIterator) Close() error         { return nil }

// DerivedSequence is a Sequence whose Operator is an index or
// aggregation operator and whose blocks are DerivedBlocks. It exposes
// capture_change, the entry point a Ring invokes after every successful
// data write.
type DerivedSequence struct {
	*Sequence
}

// NewDerived returns a derived sequence for a non-data operator.
func NewDerived(name string, op *operator.Operator) *DerivedSequence {
	return &DerivedSequence{Sequence: New(name, op)}
}

// CaptureChange implements `capture_change(k, prev, next)`: it computes
// the rmv/ins destination maps via the operator, prunes them, and
// dispatches the surviving ops to the blocks that own their destination
// keys.
func (d *DerivedSequence) CaptureChange(srcKey []byte, prev, next *objectmodel.WebObject) error {
	rmv, err := d.Operator.Map(srcKey, prev)
	if err != nil {
		return fmt.Errorf("sequence %s: mapping prev: %w", d.Name, err)
	}
	ins, err := d.Operator.Map(srcKey, next)
	if err != nil {
		return fmt.Errorf("sequence %s: mapping next: %w", d.Name, err)
	}

	for _, op := range d.Operator.PruneAndEmit(rmv, ins) {
		b, err := d.FindBlock(op.Key)
		if err != nil {
			return err
		}
		db, ok := b.(*block.DerivedBlock)
		if !ok {
			return fmt.Errorf("sequence %s: block for key does not implement DerivedBlock", d.Name)
		}
		switch op.Kind {
		case operator.OpPut:
			err = db.Put(op.Key, op.Value)
		case operator.OpDel:
			err = db.Del(op.Key)
		case operator.OpInc:
			err = db.Inc(op.Key, op.Value)
		case operator.OpDec:
			err = db.Dec(op.Key, op.Value)
		}
		if err != nil {
			return fmt.Errorf("sequence %s: dispatching op to destination block: %w", d.Name, err)
		}
	}
	return nil
}
