package engineconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/ringdb/internal/block"
	"github.com/dreamware/ringdb/internal/engine"
	"github.com/dreamware/ringdb/internal/keycodec"
	"github.com/dreamware/ringdb/internal/operator"
	"github.com/dreamware/ringdb/internal/registry"
	"github.com/dreamware/ringdb/internal/ring"
	"github.com/dreamware/ringdb/internal/sequence"
	"github.com/dreamware/ringdb/internal/storage"
)

// Config is the top-level shape of an engine YAML config file: listen
// address, registry tuning, and the ring stack, bottom ring first.
type Config struct {
	Addr                string       `yaml:"addr"`
	RegistryTTL         string       `yaml:"registry_ttl"`
	RegistryMinPurgeGap string       `yaml:"registry_min_purge_gap"`
	Rings               []RingConfig `yaml:"rings"`
}

// RingConfig describes one layer of the stack. Base names an
// already-declared ring (must appear earlier in Rings); an empty Base
// means the bottom of the stack.
type RingConfig struct {
	Name        string        `yaml:"name"`
	Base        string        `yaml:"base,omitempty"`
	ReadOnly    bool          `yaml:"read_only"`
	Store       StoreConfig   `yaml:"store"`
	InsertZones *ZonesConfig  `yaml:"insert_zones,omitempty"`
	InsertMode  string        `yaml:"insert_mode,omitempty"` // "incremental" (default) | "compact"
	FlushDelay  string        `yaml:"flush_delay,omitempty"`
	Indexes     []IndexConfig `yaml:"indexes,omitempty"`
}

// StoreConfig selects and configures one of the four Store variants.
type StoreConfig struct {
	Kind string `yaml:"kind"` // memory | yaml | jsonindex | logstructured
	Path string `yaml:"path,omitempty"`
}

// ZonesConfig is the YAML shape of block.Zones.
type ZonesConfig struct {
	ExclusiveStart *int64 `yaml:"exclusive_start,omitempty"`
	ExclusiveEnd   *int64 `yaml:"exclusive_end,omitempty"`
	ShardedStart   *int64 `yaml:"sharded_start,omitempty"`
	ShardOffset    int64  `yaml:"shard_offset"`
	ShardBase      int64  `yaml:"shard_base"`
}

// IndexConfig describes a derived sequence attached to a ring at startup.
type IndexConfig struct {
	Name string   `yaml:"name"`
	Kind string   `yaml:"kind"` // "index" | "aggregation"
	Key  []string `yaml:"key"`
	Sum  []string `yaml:"sum,omitempty"`
	Path string   `yaml:"path,omitempty"` // JSONIndexStore path; memory if empty
}

// Load reads and parses a YAML config file, then applies an
// environment-variable override for the listen address, the same
// getenv(key, default) pattern used elsewhere in this codebase.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engineconfig: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("engineconfig: parsing %s: %w", path, err)
	}
	cfg.Addr = getenv("ENGINE_ADDR", cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return &cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Build constructs a *engine.Database from cfg: one *ring.Ring per
// RingConfig in declaration order (bottom first), wired Base-to-Base and
// added to the database top-last, matching Database.AddRing's "most
// recent call is the new top" contract.
func Build(cfg *Config) (*engine.Database, error) {
	return build(cfg, false)
}

// BuildForSeeding is Build with every ring's read_only flag ignored, for
// `engine bootstrap`'s one-shot load of seed data into rings that are
// read-only during normal serving.
func BuildForSeeding(cfg *Config) (*engine.Database, error) {
	return build(cfg, true)
}

func build(cfg *Config, seeding bool) (*engine.Database, error) {
	db := engine.New()

	ttl := durationOr(cfg.RegistryTTL, 5*time.Minute)
	minGap := durationOr(cfg.RegistryMinPurgeGap, time.Second)
	db.UseRegistry(registry.New(ttl, minGap))

	byName := make(map[string]*ring.Ring, len(cfg.Rings))
	for _, rc := range cfg.Rings {
		var base *ring.Ring
		if rc.Base != "" {
			var ok bool
			base, ok = byName[rc.Base]
			if !ok {
				return nil, fmt.Errorf("engineconfig: ring %q: base %q not yet declared", rc.Name, rc.Base)
			}
		}

		store, err := buildStore(rc.Store)
		if err != nil {
			return nil, fmt.Errorf("engineconfig: ring %q: %w", rc.Name, err)
		}

		mode := block.Incremental
		if rc.InsertMode == "compact" {
			mode = block.Compact
		}

		readOnly := rc.ReadOnly && !seeding

		dblk := &block.DataBlock{
			Name:       rc.Name,
			Store:      store,
			ReadOnly:   readOnly,
			Zones:      buildZones(rc.InsertZones),
			Mode:       mode,
			FlushDelay: durationOr(rc.FlushDelay, 0),
		}

		dataOp := operator.NewDataOperator([]operator.FieldSpec{{Name: "id", Type: keycodec.IntType{}}}, nil)
		dataSeq := sequence.NewData(rc.Name, dataOp)
		dataSeq.AddBlock(dblk, nil)

		r := &ring.Ring{
			Name:        rc.Name,
			ReadOnly:    readOnly,
			Base:        base,
			Data:        dataSeq,
			InsertBlock: dblk,
		}
		// UpsaveTarget (for read-only rings) is backfilled by
		// wireUpsaveTargets after every ring has been declared, since a
		// ring's writable parent may be declared after it.
		if err := r.Open(); err != nil {
			return nil, fmt.Errorf("engineconfig: opening ring %q: %w", rc.Name, err)
		}

		byName[rc.Name] = r
		db.AddRing(r)

		for _, ic := range rc.Indexes {
			seq, err := buildIndex(ic)
			if err != nil {
				return nil, fmt.Errorf("engineconfig: ring %q index %q: %w", rc.Name, ic.Name, err)
			}
			if err := db.CreateIndex(rc.Name, seq); err != nil {
				return nil, fmt.Errorf("engineconfig: ring %q index %q: %w", rc.Name, ic.Name, err)
			}
		}
	}

	wireUpsaveTargets(cfg, byName)
	return db, nil
}

// wireUpsaveTargets sets each read-only ring's UpsaveTarget to the
// nearest writable ring above it in the stack, and points the Upsave
// callback of every DataBlock in that ring at it: a second pass over the
// already-open rings since a ring's writable parent may be declared
// after it.
func wireUpsaveTargets(cfg *Config, byName map[string]*ring.Ring) {
	for _, rc := range cfg.Rings {
		if !rc.ReadOnly {
			continue
		}
		r := byName[rc.Name]
		// Walk declaration order to find the first writable ring whose
		// Base chain passes through r.
		for _, candidate := range cfg.Rings {
			cr := byName[candidate.Name]
			if cr.ReadOnly {
				continue
			}
			for b := cr.Base; b != nil; b = b.Base {
				if b == r {
					r.UpsaveTarget = cr
					break
				}
			}
			if r.UpsaveTarget != nil {
				break
			}
		}
		if r.UpsaveTarget != nil {
			for _, b := range r.Data.Blocks() {
				if dblk, ok := b.(*block.DataBlock); ok {
					dblk.Upsave = r.UpsaveTarget.UpsaveTo
				}
			}
		}
	}
}

func buildStore(sc StoreConfig) (storage.Store, error) {
	switch sc.Kind {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "yaml":
		return storage.NewYamlDataStore(sc.Path, keycodec.NewSchema(keycodec.IntType{})), nil
	case "jsonindex":
		return storage.NewJSONIndexStore(sc.Path), nil
	case "logstructured":
		return storage.NewLogStructuredStore(sc.Path)
	default:
		return nil, fmt.Errorf("engineconfig: unknown store kind %q", sc.Kind)
	}
}

func buildZones(zc *ZonesConfig) block.Zones {
	if zc == nil {
		return block.Zones{}
	}
	return block.Zones{
		A:     zc.ExclusiveStart,
		B:     zc.ExclusiveEnd,
		C:     zc.ShardedStart,
		Shard: block.Shard3{Offset: zc.ShardOffset, Base: zc.ShardBase},
	}
}

func buildIndex(ic IndexConfig) (*sequence.DerivedSequence, error) {
	keyFields := make([]operator.FieldSpec, len(ic.Key))
	for i, name := range ic.Key {
		keyFields[i] = operator.FieldSpec{Name: name, Type: keycodec.IntType{}}
	}

	var op *operator.Operator
	switch ic.Kind {
	case "aggregation":
		op = operator.NewAggregationOperator(keyFields, ic.Sum)
	case "index", "":
		op = operator.NewIndexOperator(keyFields, nil)
	default:
		return nil, fmt.Errorf("unknown index kind %q", ic.Kind)
	}

	var store storage.Store
	if ic.Path != "" {
		store = storage.NewJSONIndexStore(ic.Path)
	} else {
		store = storage.NewMemoryStore()
	}

	dblk := &block.DerivedBlock{Name: ic.Name, Store: store}
	seq := sequence.NewDerived(ic.Name, op)
	seq.AddBlock(dblk, nil)
	return seq, nil
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
