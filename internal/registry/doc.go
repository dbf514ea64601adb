// Package registry implements a process-local object cache: id -> Object,
// with per-entry expiry, a pinned root object that is reloaded rather
// than evicted, and a re-entrant-safe purge sweep that honors a minimum
// inter-purge delay.
package registry
