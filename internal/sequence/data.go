package sequence

import (
	"fmt"

	"github.com/dreamware/ringdb/internal/block"
	"github.com/dreamware/ringdb/internal/operator"
)

// DataSequence is a Sequence whose Operator is a data operator and whose
// blocks are DataBlocks.
type DataSequence struct {
	*Sequence
}

// NewData returns a data sequence for op.
func NewData(name string, op *operator.Operator) *DataSequence {
	return &DataSequence{Sequence: New(name, op)}
}

// FindDataBlock locates the DataBlock owning id's key.
func (d *DataSequence) FindDataBlock(id int64) (*block.DataBlock, error) {
	key, err := d.Operator.EncodeKey([]any{id})
	if err != nil {
		return nil, err
	}
	b, err := d.FindBlock(key)
	if err != nil {
		return nil, err
	}
	db, ok := b.(*block.DataBlock)
	if !ok {
		return nil, fmt.Errorf("sequence %s: block for id %d is not a DataBlock", d.Name, id)
	}
	return db, nil
}
