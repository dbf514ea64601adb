package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dreamware/ringdb/internal/storage"
)

// DerivedBlock owns one Store holding index or aggregation records. Its
// commands are dispatched by a Sequence's capture_change, never directly
// by a caller of the Database.
type DerivedBlock struct {
	Name  string
	Store storage.Store

	flush *flushState
}

// Open prepares the block for use. Derived blocks have no autoincrement
// state, so Open need not inspect the store's maximum key.
func (b *DerivedBlock) Open() error {
	b.flush = newFlushState(b.Store, 0)
	_, err := b.Store.Open()
	return err
}

func (b *DerivedBlock) Put(key []byte, value string) error {
	if err := b.Store.Put(key, value); err != nil {
		return err
	}
	return b.flush.Flush(true)
}

func (b *DerivedBlock) Del(key []byte) error {
	if _, err := b.Store.Del(key); err != nil {
		return err
	}
	return b.flush.Flush(true)
}

// Inc applies a JSON-array accumulator delta: the stored value (or an
// all-zero accumulator if absent) is summed element-wise with delta.
func (b *DerivedBlock) Inc(key []byte, delta string) error {
	return b.accumulate(key, delta, 1)
}

// Dec is the inverse of Inc.
func (b *DerivedBlock) Dec(key []byte, delta string) error {
	return b.accumulate(key, delta, -1)
}

func (b *DerivedBlock) accumulate(key []byte, delta string, sign float64) error {
	var deltaAcc []float64
	if err := json.Unmarshal([]byte(delta), &deltaAcc); err != nil {
		return fmt.Errorf("derivedblock: parsing accumulator delta: %w", err)
	}

	cur, err := b.Store.Get(key)
	var curAcc []float64
	if err == nil {
		if err := json.Unmarshal([]byte(cur), &curAcc); err != nil {
			return fmt.Errorf("derivedblock: parsing stored accumulator: %w", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	n := len(deltaAcc)
	if len(curAcc) > n {
		n = len(curAcc)
	}
	out := make([]float64, n)
	for i := 0; i < len(curAcc); i++ {
		out[i] = curAcc[i]
	}
	for i, d := range deltaAcc {
		out[i] += sign * d
	}

	if out[0] <= 0 {
		_, err := b.Store.Del(key)
		if err != nil {
			return err
		}
		return b.flush.Flush(true)
	}

	b2, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := b.Store.Put(key, string(b2)); err != nil {
		return err
	}
	return b.flush.Flush(true)
}

func (b *DerivedBlock) Scan(opts storage.ScanOptions) (storage.Iterator, error) {
	return b.Store.Scan(opts)
}

func (b *DerivedBlock) Stats() storage.StoreStats {
	return b.Store.Stats()
}

func (b *DerivedBlock) Erase() error {
	return b.Store.Erase()
}

func (b *DerivedBlock) Flush(withDelay bool) error {
	return b.flush.Flush(withDelay)
}
