package engineconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dreamware/ringdb/internal/engine"
	"github.com/dreamware/ringdb/internal/objectmodel"
)

const twoRingYAML = `
addr: ":9090"
rings:
  - name: bottom
    read_only: true
    store:
      kind: memory
  - name: top
    base: bottom
    store:
      kind: memory
    insert_zones:
      exclusive_start: 1000
      exclusive_end: 2000
      sharded_start: 2000
      shard_offset: 0
      shard_base: 3
    indexes:
      - name: by_category
        kind: index
        key: ["category"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesAddrDefault(t *testing.T) {
	path := writeConfig(t, "rings:\n  - name: bottom\n    store:\n      kind: memory\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("got addr %q, want default %q", cfg.Addr, ":8080")
	}
}

func TestLoadHonorsConfiguredAddr(t *testing.T) {
	path := writeConfig(t, twoRingYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("got addr %q, want %q", cfg.Addr, ":9090")
	}
	if len(cfg.Rings) != 2 {
		t.Fatalf("got %d rings, want 2", len(cfg.Rings))
	}
}

func TestBuildWiresBaseAndRespectsReadOnly(t *testing.T) {
	path := writeConfig(t, twoRingYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	db, err := Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := db.Insert(map[string]objectmodel.Value{"category": objectmodel.IntValue(1)}, engine.InsertOptions{Ring: "bottom"}); err == nil {
		t.Fatalf("expected insert into read-only bottom ring to fail under Build")
	}

	id, err := db.Insert(map[string]objectmodel.Value{"category": objectmodel.IntValue(1)}, engine.InsertOptions{Ring: "top"})
	if err != nil {
		t.Fatalf("insert into top ring: %v", err)
	}
	if id < 1000 || id >= 2000 {
		t.Fatalf("got id %d, want inside top ring's [1000,2000) exclusive zone", id)
	}
}

func TestBuildForSeedingBypassesReadOnly(t *testing.T) {
	path := writeConfig(t, twoRingYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	db, err := BuildForSeeding(cfg)
	if err != nil {
		t.Fatalf("build for seeding: %v", err)
	}

	_, err = db.Insert(map[string]objectmodel.Value{"category": objectmodel.IntValue(1)},
		engine.InsertOptions{Ring: "bottom", ExplicitID: 1, HasExplicitID: true})
	if err != nil {
		t.Fatalf("expected explicit-id insert into bottom ring to succeed while seeding, got: %v", err)
	}

	res, err := db.Select(1, "bottom")
	if err != nil {
		t.Fatalf("select seeded record: %v", err)
	}
	if res.Object.Data["category"].Int != 1 {
		t.Fatalf("got %d, want 1", res.Object.Data["category"].Int)
	}
}

func TestBuildCreatesDeclaredIndexes(t *testing.T) {
	path := writeConfig(t, twoRingYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	db, err := Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := db.Insert(map[string]objectmodel.Value{"n": objectmodel.StringValue("x")},
		engine.InsertOptions{Ring: "top", CategoryID: 5, HasCategory: true}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := db.RebuildIndexes("top"); err != nil {
		t.Fatalf("rebuild indexes: %v", err)
	}
}

func TestBuildRejectsUnknownBase(t *testing.T) {
	path := writeConfig(t, "rings:\n  - name: top\n    base: missing\n    store:\n      kind: memory\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected an error for a base naming an undeclared ring")
	}
}

func TestBuildRejectsUnknownStoreKind(t *testing.T) {
	path := writeConfig(t, "rings:\n  - name: top\n    store:\n      kind: bogus\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected an error for an unknown store kind")
	}
}
