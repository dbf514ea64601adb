package engine

import (
	"bytes"
	"container/heap"

	"github.com/dreamware/ringdb/internal/ring"
	"github.com/dreamware/ringdb/internal/storage"
)

// Scan implements `scan(name, {...}) → stream<record>`: a k-way merge of
// every ring's scan, sorted by binary key, deduplicating identical keys
// so the topmost ring's copy wins.
func (db *Database) Scan(opts storage.ScanOptions) (storage.Iterator, error) {
	db.mu.RLock()
	stack := append([]*ring.Ring(nil), db.stack...)
	db.mu.RUnlock()

	iters := make([]storage.Iterator, len(stack))
	for i, r := range stack {
		it, err := r.Scan(opts)
		if err != nil {
			closeAll(iters[:i])
			return nil, err
		}
		iters[i] = it
	}
	defer closeAll(iters)

	h := &mergeHeap{reverse: opts.Reverse}
	for i, it := range iters {
		if it.Next() {
			h.entries = append(h.entries, mergeEntry{rec: it.Record(), rank: i, src: i})
		}
	}
	heap.Init(h)

	var out []storage.Record
	var lastKey []byte
	haveLast := false
	for h.Len() > 0 {
		top := heap.Pop(h).(mergeEntry)
		if !haveLast || !bytes.Equal(top.rec.Key, lastKey) {
			out = append(out, top.rec)
			lastKey = top.rec.Key
			haveLast = true
		}
		if it := iters[top.src]; it.Next() {
			heap.Push(h, mergeEntry{rec: it.Record(), rank: top.rank, src: top.src})
		}
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return &recordIterator{recs: out, idx: -1}, nil
}

func closeAll(iters []storage.Iterator) {
	for _, it := range iters {
		if it != nil {
			it.Close()
		}
	}
}

// mergeEntry is one pending record from one ring's scan, tagged with its
// rank (ring position, 0 = topmost) so ties resolve top-ring-wins.
type mergeEntry struct {
	rec  storage.Record
	rank int
	src  int
}

type mergeHeap struct {
	entries []mergeEntry
	reverse bool
}

func (h *mergeHeap) Len() int { return len(h.entries) }

func (h *mergeHeap) Less(i, j int) bool {
	c := bytes.Compare(h.entries[i].rec.Key, h.entries[j].rec.Key)
	if h.reverse {
		c = -c
	}
	if c != 0 {
		return c < 0
	}
	return h.entries[i].rank < h.entries[j].rank
}

func (h *mergeHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *mergeHeap) Push(x any) { h.entries = append(h.entries, x.(mergeEntry)) }

func (h *mergeHeap) Pop() any {
	old := h.entries
	n := len(old)
	item := old[n-1]
	h.entries = old[:n-1]
	return item
}

// recordIterator adapts a pre-materialized, already-merged []Record to
// storage.Iterator.
type recordIterator struct {
	recs []storage.Record
	idx  int
}

func (it *recordIterator) Next() bool             { it.idx++; return it.idx < len(it.recs) }
func (it *recordIterator) Record() storage.Record { return it.recs[it.idx] }
func (it *recordIterator) Err() error             { return nil }
func (it *recordIterator) Close() error           { return nil }
