package objectmodel

// WebObject is the storage core's view of a record: a positive integer
// ID, a monotonic version counter, an optional seal, an optional
// category reference, and a data map of named properties. Clone must be
// used before mutating an object reachable from another goroutine; Blocks
// never mutate a WebObject in place once it has been handed to a caller.
type WebObject struct {
	ID         int64
	Version    int64
	Seal       string
	CategoryID int64
	HasCat     bool
	Data       map[string]Value
}

// Clone returns a copy with its own Data map, so top-level fields can be
// set or deleted in place. Nested Array and Map values are not copied:
// their backing slices and maps are shared with the original.
func (o *WebObject) Clone() *WebObject {
	if o == nil {
		return nil
	}
	n := &WebObject{
		ID:         o.ID,
		Version:    o.Version,
		Seal:       o.Seal,
		CategoryID: o.CategoryID,
		HasCat:     o.HasCat,
		Data:       make(map[string]Value, len(o.Data)),
	}
	for k, v := range o.Data {
		n.Data[k] = v
	}
	return n
}

// EditOp names one operation in an edit list. The set
// of op names is owned by the object system; the storage core treats the
// list as opaque and applies only the handful of primitive ops it must
// understand to keep a record's data map consistent after an update.
type EditOp string

const (
	EditSet       EditOp = "set"
	EditDelete    EditOp = "delete"
	EditOverwrite EditOp = "overwrite"
	EditAppend    EditOp = "append"
)

// Edit is one entry of an edit list passed to Database.Update.
type Edit struct {
	Op    EditOp
	Path  string
	Value Value
}

// ApplyEdits applies edits to data in order, returning the resulting map.
// It implements the small subset of edit semantics the storage core needs
// to maintain dynamic properties and strong references across an update;
// richer path expressions (nested nav, plural accessors) are resolved by
// the object system before edits reach this layer, so Path here is always
// a single top-level field name.
func ApplyEdits(data map[string]Value, edits []Edit) map[string]Value {
	out := make(map[string]Value, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, e := range edits {
		switch e.Op {
		case EditSet, EditOverwrite:
			out[e.Path] = e.Value
		case EditDelete:
			delete(out, e.Path)
		case EditAppend:
			cur := out[e.Path]
			if cur.Kind != KindArray {
				cur = ArrayValue(nil)
			}
			out[e.Path] = ArrayValue(append(append([]Value(nil), cur.Array...), e.Value))
		}
	}
	return out
}
