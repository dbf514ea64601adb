// Package storage defines the physical key/value container contract used
// by every Block (see internal/block), and provides four concrete
// variants: an in-memory store, a YAML-file-backed data store, a
// JSON-lines-backed derived-sequence store, and a log-structured store
// backed by an embedded B+tree.
//
// # Contract
//
// All variants implement Store: binary key -> JSON-string value, with
// get/put/del/scan/erase/flush. Open returns the maximum data key
// observed, used to seed a DataBlock's autoincrement counter. Scans are
// consistent with the store's contents at the moment iteration starts;
// concurrent mutations during a scan may or may not be visible.
//
// # Variants
//
//	MemoryStore        in-memory sorted map; scans sort keys on demand.
//	YamlDataStore      development-time data store; one YAML sequence
//	                   entry per record, sorted on flush.
//	JSONIndexStore     development-time derived-sequence store; one JSON
//	                   array per line.
//	LogStructuredStore production store; wraps an embedded B+tree for
//	                   durable, transactional storage with atomic bulk
//	                   writes.
//
// # See Also
//
// internal/block uses Store to back both DataBlock and DerivedBlock.
package storage
