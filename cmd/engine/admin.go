// admin.go wires four cobra subcommands onto the adminclient package's
// HTTP calls, giving an operator a CLI for the same administrative
// surface the engine's "serve" process exposes over /admin/*: rebuilding
// derived indexes, attaching a new one, moving objects between rings, and
// reading a ring's size.
//
// Every subcommand here shares an --addr flag (the running engine's base
// URL) and does nothing but parse its flags, call the matching
// adminclient method, and print a one-line result; the actual admin
// logic lives in internal/engine.Database and is exercised identically
// whether it's reached over HTTP or directly in-process (see
// cmd/engine/serve_test.go).
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamware/ringdb/internal/adminclient"
)

// rebuildIndexesCmd erases and repopulates every derived sequence of a
// ring from scratch by rescanning its data sequence. Safe to run against
// a live engine; readers see a partially-rebuilt index mid-run, never a
// corrupted one.
var rebuildIndexesCmd = &cobra.Command{
	Use:   "rebuild-indexes",
	Short: "Rebuild a running engine's derived indexes from scratch",
	RunE:  runRebuildIndexes,
}

// createIndexCmd attaches a brand-new derived index or aggregation to a
// ring and immediately rebuilds it from that ring's current data, so the
// new index is queryable the moment the command returns.
var createIndexCmd = &cobra.Command{
	Use:   "create-index",
	Short: "Attach a new derived index to a running engine's ring",
	RunE:  runCreateIndex,
}

// reinsertCmd moves one or more objects, by id, into a different ring
// while preserving their id and data — the administrative tool for
// reshaping a stack (e.g. promoting hot objects, archiving cold ones).
var reinsertCmd = &cobra.Command{
	Use:   "reinsert <id>...",
	Short: "Move one or more objects into a different ring",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReinsert,
}

// statsCmd reports a ring's key count and total value bytes, summed
// across its data blocks and every derived sequence's blocks.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report key count and total value bytes for a running engine's ring",
	RunE:  runStats,
}

func init() {
	for _, c := range []*cobra.Command{rebuildIndexesCmd, createIndexCmd, reinsertCmd, statsCmd} {
		c.Flags().String("addr", "http://localhost:8080", "Address of a running engine serve process")
	}

	rebuildIndexesCmd.Flags().String("ring", "", "Ring to rebuild (defaults to the top ring)")

	statsCmd.Flags().String("ring", "", "Ring to report on (defaults to the top ring)")

	createIndexCmd.Flags().String("name", "", "Index name")
	createIndexCmd.Flags().String("ring", "", "Ring to attach the index to (defaults to the top ring)")
	createIndexCmd.Flags().String("kind", "index", "index | aggregation")
	createIndexCmd.Flags().StringSlice("key", nil, "Key field names, in order")
	createIndexCmd.Flags().StringSlice("sum", nil, "Sum field names (aggregation only)")
	_ = createIndexCmd.MarkFlagRequired("name")
	_ = createIndexCmd.MarkFlagRequired("key")

	reinsertCmd.Flags().String("target", "", "Target ring name")
	_ = reinsertCmd.MarkFlagRequired("target")
}

// runRebuildIndexes posts to /admin/rebuild-indexes and reports nothing
// on success; a non-nil error already carries the engine's own message.
func runRebuildIndexes(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	ring, _ := cmd.Flags().GetString("ring")
	return adminclient.New(addr).RebuildIndexes(context.Background(), ring)
}

// runCreateIndex builds a CreateIndexRequest from flags and posts it to
// /admin/create-index. --key may repeat to build a composite key; --sum
// is ignored for an "index" kind and required in spirit (though not
// enforced here) for "aggregation".
func runCreateIndex(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	name, _ := cmd.Flags().GetString("name")
	ring, _ := cmd.Flags().GetString("ring")
	kind, _ := cmd.Flags().GetString("kind")
	key, _ := cmd.Flags().GetStringSlice("key")
	sum, _ := cmd.Flags().GetStringSlice("sum")

	return adminclient.New(addr).CreateIndex(context.Background(), adminclient.CreateIndexRequest{
		Name: name,
		Ring: ring,
		Kind: kind,
		Key:  key,
		Sum:  sum,
	})
}

// runReinsert parses each positional argument as an int64 id, then posts
// the whole batch to /admin/reinsert in a single request.
func runReinsert(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	target, _ := cmd.Flags().GetString("target")

	ids := make([]int64, len(args))
	for i, a := range args {
		var id int64
		if _, err := fmt.Sscanf(a, "%d", &id); err != nil {
			return fmt.Errorf("bad id %q: %w", a, err)
		}
		ids[i] = id
	}

	resp, err := adminclient.New(addr).Reinsert(context.Background(), adminclient.ReinsertRequest{
		IDs:    ids,
		Target: target,
	})
	if err != nil {
		return err
	}
	fmt.Printf("reinserted %v into %s\n", resp.IDs, target)
	return nil
}

// runStats gets /admin/stats and prints the key count and byte total in
// a single line, for quick operator inspection rather than scripting.
func runStats(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	ring, _ := cmd.Flags().GetString("ring")

	resp, err := adminclient.New(addr).Stats(context.Background(), ring)
	if err != nil {
		return err
	}
	fmt.Printf("keys=%d bytes=%d\n", resp.Keys, resp.Bytes)
	return nil
}
