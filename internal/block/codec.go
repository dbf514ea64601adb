package block

import (
	"encoding/json"
	"fmt"

	"github.com/dreamware/ringdb/internal/objectmodel"
)

// wireObject is the on-disk JSON shape of a WebObject: a flat envelope
// around the well-known columns plus a nested data map, matching the
// `__id`/`__ver`/`__data` naming the bootstrap file format uses.
type wireObject struct {
	ID      int64          `json:"__id"`
	Version int64          `json:"__ver"`
	Seal    string         `json:"__seal,omitempty"`
	Cat     *int64         `json:"__cat,omitempty"`
	Data    map[string]any `json:"__data"`
}

func encodeObject(obj *objectmodel.WebObject) (string, error) {
	data, err := objectmodel.DataToJSON(obj.Data)
	if err != nil {
		return "", fmt.Errorf("block: encoding object %d: %w", obj.ID, err)
	}
	w := wireObject{ID: obj.ID, Version: obj.Version, Seal: obj.Seal, Data: data}
	if obj.HasCat {
		w.Cat = &obj.CategoryID
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeObject is the exported form of decodeObject, for callers outside
// the package (the engine's index rebuild) that need to turn a raw Store
// value back into a WebObject after a direct sequence scan.
func DecodeObject(id int64, raw string) (*objectmodel.WebObject, error) {
	return decodeObject(id, raw)
}

func decodeObject(id int64, raw string) (*objectmodel.WebObject, error) {
	var w wireObject
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("block: decoding object %d: %w", id, err)
	}
	data := objectmodel.DataFromJSON(w.Data)
	obj := &objectmodel.WebObject{ID: id, Version: w.Version, Seal: w.Seal, Data: data}
	if w.Cat != nil {
		obj.HasCat = true
		obj.CategoryID = *w.Cat
	}
	return obj, nil
}
