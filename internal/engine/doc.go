// Package engine implements Database, the library-boundary façade over
// a ring stack: select/insert/update/delete/scan routed to the right
// ring, a k-way merge-sort scan across the whole ring stack that
// deduplicates identical keys (top ring wins), and the administrative
// actions (admin_reinsert, rebuild_indexes, create_index).
package engine
