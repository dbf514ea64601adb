// Package adminclient is a thin JSON-over-HTTP client for cmd/engine's
// admin subcommands (rebuild-indexes, create-index, reinsert, stats): each
// subcommand is a one-shot call against a running `engine serve` process's
// admin endpoints.
package adminclient
