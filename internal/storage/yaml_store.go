package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/ringdb/internal/keycodec"
)

// YamlDataStore is a development-time Store that persists its contents as
// a single YAML document: a sequence of records sorted by id on flush,
// each shaped `{__id: ..., field: value, ...}` — the same flat,
// human-editable shape the bootstrap seed file uses. It is intended for
// data sequences that are hand-edited or bootstrapped from a checked-in
// file, not for high-throughput production use.
//
// Unlike the generic key/value stores, YamlDataStore must be able to
// recover a record's id from its binary key (and vice versa) to present
// it this way, so it takes the data sequence's id schema at
// construction — ordinarily a single-field keycodec.IntType schema.
type YamlDataStore struct {
	path     string
	idSchema keycodec.Schema

	mu    sync.RWMutex
	data  map[string]string
	dirty bool
}

// NewYamlDataStore returns a store backed by the YAML file at path,
// using idSchema to translate between a record's binary key and the
// __id it's written under. The file is not read until Open is called.
func NewYamlDataStore(path string, idSchema keycodec.Schema) *YamlDataStore {
	return &YamlDataStore{path: path, idSchema: idSchema, data: make(map[string]string)}
}

func (s *YamlDataStore) Open() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var recs []map[string]any
	if err := yaml.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	for _, rec := range recs {
		id, err := recordID(rec)
		if err != nil {
			return nil, fmt.Errorf("storage: yaml record: %w", err)
		}
		key, err := s.idSchema.EncodeKey([]any{id})
		if err != nil {
			return nil, fmt.Errorf("storage: encoding key for id %d: %w", id, err)
		}
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("storage: re-encoding record %d as JSON: %w", id, err)
		}
		s.data[string(key)] = string(value)
	}
	return maxKey(s.data), nil
}

// recordID extracts and normalizes the __id field a YAML record was
// parsed under. yaml.v3 decodes small integers as int, so this covers
// the range every id actually takes.
func recordID(rec map[string]any) (int64, error) {
	raw, ok := rec["__id"]
	if !ok {
		return 0, fmt.Errorf("missing __id field")
	}
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("__id field has unsupported type %T", raw)
	}
}

func (s *YamlDataStore) Get(key []byte) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *YamlDataStore) Put(key []byte, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = value
	s.dirty = true
	return nil
}

func (s *YamlDataStore) Del(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[string(key)]
	delete(s.data, string(key))
	s.dirty = true
	return ok, nil
}

func (s *YamlDataStore) Scan(opts ScanOptions) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if inBounds([]byte(k), opts.Start, opts.Stop) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if opts.Reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}
	recs := make([]Record, len(keys))
	for i, k := range keys {
		recs[i] = Record{Key: []byte(k), Value: s.data[k]}
	}
	return &sliceIterator{recs: recs, idx: -1}, nil
}

func (s *YamlDataStore) Erase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
	s.dirty = true
	return nil
}

// Flush writes the current contents to disk as a sorted sequence of
// `{__id, field: value, ...}` YAML records. Calling Flush with no
// pending writes is a no-op.
func (s *YamlDataStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	recs := make([]map[string]any, len(keys))
	for i, k := range keys {
		values, err := s.idSchema.DecodeKey([]byte(k))
		if err != nil {
			return fmt.Errorf("storage: decoding key for flush: %w", err)
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(s.data[k]), &rec); err != nil {
			return fmt.Errorf("storage: record value is not a JSON object: %w", err)
		}
		rec["__id"] = values[0]
		recs[i] = rec
	}

	out, err := yaml.Marshal(recs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *YamlDataStore) Bulk(ops []Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			s.data[string(op.Key)] = op.Value
		case OpDel:
			delete(s.data, string(op.Key))
		}
	}
	s.dirty = true
	return nil
}

func (s *YamlDataStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statsOf(s.data)
}
