package objectmodel

import "testing"

func TestApplyEditsSetDeleteAppend(t *testing.T) {
	data := map[string]Value{
		"n":     StringValue("a"),
		"views": IntValue(1),
	}

	out := ApplyEdits(data, []Edit{
		{Op: EditSet, Path: "n", Value: StringValue("b")},
		{Op: EditDelete, Path: "views"},
		{Op: EditAppend, Path: "tags", Value: StringValue("x")},
		{Op: EditAppend, Path: "tags", Value: StringValue("y")},
	})

	if !out["n"].Equal(StringValue("b")) {
		t.Fatalf("n = %v, want b", out["n"])
	}
	if _, ok := out["views"]; ok {
		t.Fatal("views should have been deleted")
	}
	tags := out["tags"]
	if tags.Kind != KindArray || len(tags.Array) != 2 {
		t.Fatalf("tags = %v, want [x y]", tags)
	}

	// original map must be untouched.
	if _, ok := data["tags"]; ok {
		t.Fatal("ApplyEdits must not mutate its input map")
	}
}

func TestCollectRefsStrongOnly(t *testing.T) {
	data := map[string]Value{
		"child":  RefValue(NewRef(2, true)),
		"friend": RefValue(NewRef(3, false)),
		"kids": ArrayValue([]Value{
			RefValue(NewRef(4, true)),
			RefValue(NewRef(5, false)),
		}),
	}

	strong := CollectRefs(data, true)
	if len(strong) != 2 {
		t.Fatalf("expected 2 strong refs, got %d: %v", len(strong), strong)
	}

	all := CollectRefs(data, false)
	if len(all) != 4 {
		t.Fatalf("expected 4 refs total, got %d: %v", len(all), all)
	}
}

func TestRefEqualityIgnoresStrength(t *testing.T) {
	a := NewRef(10, true)
	b := NewRef(10, false)
	if !a.Equal(b) {
		t.Fatal("refs to the same id should be equal regardless of strength")
	}
	p := NewProvisionalRef(-1, true)
	if p.Equal(Ref{ID: p.ID, Strong: true}) {
		t.Fatal("provisional ref must not equal a final ref sharing the same numeric id")
	}
}

func TestWebObjectCloneIsIndependent(t *testing.T) {
	o := &WebObject{ID: 1, Version: 1, Data: map[string]Value{"n": StringValue("a")}}
	c := o.Clone()
	c.Data["n"] = StringValue("b")
	if o.Data["n"].String != "a" {
		t.Fatal("mutating the clone's data must not affect the original")
	}
}
