package objectmodel

import "strconv"

// PathRef pairs a reference with the data-map path it was found at, the
// unit cascade delete reasons about.
type PathRef struct {
	Path string
	Ref  Ref
}

// CollectRefs walks data one level deep and returns every [path, ref]
// pair found. When strongOnly is true, only references whose Strong bit
// is set are returned; otherwise every reference is returned regardless
// of strength. Arrays of refs are expanded with an index-suffixed path
// (e.g. "children[0]") so distinct array slots are distinguishable.
func CollectRefs(data map[string]Value, strongOnly bool) []PathRef {
	var out []PathRef
	for path, v := range data {
		collectRefsInto(path, v, strongOnly, &out)
	}
	return out
}

func collectRefsInto(path string, v Value, strongOnly bool, out *[]PathRef) {
	switch v.Kind {
	case KindRef:
		if !strongOnly || v.Ref.Strong {
			*out = append(*out, PathRef{Path: path, Ref: v.Ref})
		}
	case KindArray:
		for i, elem := range v.Array {
			collectRefsInto(indexPath(path, i), elem, strongOnly, out)
		}
	}
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
