// Package ring implements one layer of the stacked key/value database:
// a primary DataSequence plus zero or more derived sequences, an ID
// insert policy enforced at the designated insert block, and the
// read-through (descend on miss) / write-through (escalate from a
// read-only ring to the nearest writable one above) routing that ties
// the ring stack together. A successful local write also drives
// cascade delete and derived-sequence propagation.
package ring
