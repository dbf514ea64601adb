package storage

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var recordsBucket = []byte("records")

// LogStructuredStore is the production Store: an embedded B+tree backed
// by go.etcd.io/bbolt, providing durable, transactional storage. All
// records for a single Store instance live in one bucket; bbolt keeps
// keys in byte order natively, so Scan needs no sorting step.
type LogStructuredStore struct {
	db *bolt.DB
}

// NewLogStructuredStore opens (creating if necessary) a bbolt database at
// path and ensures its records bucket exists.
func NewLogStructuredStore(path string) (*LogStructuredStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("logstructuredstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &LogStructuredStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *LogStructuredStore) Close() error {
	return s.db.Close()
}

func (s *LogStructuredStore) Open() ([]byte, error) {
	var max []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		c := b.Cursor()
		k, _ := c.Last()
		if k != nil {
			max = append([]byte(nil), k...)
		}
		return nil
	})
	return max, err
}

func (s *LogStructuredStore) Get(key []byte) (string, error) {
	var value string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get(key)
		if v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *LogStructuredStore) Put(key []byte, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Put(key, []byte(value))
	})
}

func (s *LogStructuredStore) Del(key []byte) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		existed = b.Get(key) != nil
		return b.Delete(key)
	})
	return existed, err
}

func (s *LogStructuredStore) Scan(opts ScanOptions) (Iterator, error) {
	var recs []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()

		var k, v []byte
		var step func() ([]byte, []byte)

		if opts.Reverse {
			step = c.Prev
			if opts.Stop != nil {
				k, v = c.Seek(opts.Stop)
				if k == nil {
					k, v = c.Last()
				} else {
					k, v = c.Prev()
				}
			} else {
				k, v = c.Last()
			}
			for ; k != nil && bytes.Compare(k, opts.Start) >= 0; k, v = step() {
				recs = append(recs, Record{Key: append([]byte(nil), k...), Value: string(v)})
				if opts.Limit > 0 && len(recs) >= opts.Limit {
					break
				}
			}
			return nil
		}

		step = c.Next
		if opts.Start != nil {
			k, v = c.Seek(opts.Start)
		} else {
			k, v = c.First()
		}
		for ; k != nil; k, v = step() {
			if opts.Stop != nil && bytes.Compare(k, opts.Stop) >= 0 {
				break
			}
			recs = append(recs, Record{Key: append([]byte(nil), k...), Value: string(v)})
			if opts.Limit > 0 && len(recs) >= opts.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sliceIterator{recs: recs, idx: -1}, nil
}

func (s *LogStructuredStore) Erase() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(recordsBucket)
		return err
	})
}

// Flush is a no-op: bbolt commits every Update transaction durably.
func (s *LogStructuredStore) Flush() error { return nil }

// Bulk applies all ops within a single bbolt transaction, giving true
// atomicity unlike the other store variants' best-effort loops.
func (s *LogStructuredStore) Bulk(ops []Op) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		for _, op := range ops {
			switch op.Kind {
			case OpPut:
				if err := b.Put(op.Key, []byte(op.Value)); err != nil {
					return err
				}
			case OpDel:
				if err := b.Delete(op.Key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Stats walks the bucket to total key count and value bytes. bbolt's own
// bucket.Stats() reports page-level counters, not the logical byte total
// this type's StoreStats promises, so this counts directly.
func (s *LogStructuredStore) Stats() StoreStats {
	var stats StoreStats
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		return b.ForEach(func(k, v []byte) error {
			stats.Keys++
			stats.Bytes += len(v)
			return nil
		})
	})
	return stats
}
