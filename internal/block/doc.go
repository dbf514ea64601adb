// Package block implements the unit of ownership and concurrency of the
// storage core: a Block owns exactly one Store,
// serializes mutating commands per record under row-level locks, and
// coalesces flushes. DataBlock additionally implements ID allocation
// (zones, shard3, incremental/compact policies, batch insert with
// provisional-id rectification); DerivedBlock implements the put/del/
// inc/dec commands a derived sequence dispatches to it.
package block
