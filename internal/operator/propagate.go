package operator

// OpKind identifies one of the four destination operations a derived
// sequence change can produce.
type OpKind int

const (
	OpPut OpKind = iota
	OpDel
	OpInc
	OpDec
)

// Op is one operation to dispatch to the block owning Key, produced by
// a derived sequence's change-capture step.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value string
}

// PruneAndEmit applies the prune rule to the rmv/ins
// destination maps produced by calling Map against prev and next, and
// converts the survivors into the ordered operation list to dispatch.
//
// For every destination key present in both maps: if the values are
// equal, both entries are dropped (no-op). Otherwise, an index operator
// drops the rmv side (the subsequent put overwrites); an aggregation
// operator keeps both sides, since the dec/inc pair actually changes the
// accumulator.
func (op *Operator) PruneAndEmit(rmv, ins map[string]DestRecord) []Op {
	var ops []Op

	for key, r := range rmv {
		i, inIns := ins[key]
		if inIns && r.Value == i.Value {
			continue
		}
		if inIns && op.SupportsImplicitOverride() {
			continue
		}
		ops = append(ops, Op{Kind: op.delKind(), Key: r.Key, Value: r.Value})
	}

	for key, i := range ins {
		if r, inRmv := rmv[key]; inRmv && r.Value == i.Value {
			continue
		}
		ops = append(ops, Op{Kind: op.putKind(), Key: i.Key, Value: i.Value})
	}

	return ops
}

func (op *Operator) delKind() OpKind {
	if op.IsAggregation() {
		return OpDec
	}
	return OpDel
}

func (op *Operator) putKind() OpKind {
	if op.IsAggregation() {
		return OpInc
	}
	return OpPut
}
