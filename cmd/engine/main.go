// Package main implements the engine binary: a single-process storage
// core serving one ring stack.
//
//	engine serve <config.yaml>               run the HTTP API
//	engine bootstrap <config.yaml> <data.yaml>  load a bootstrap file, then exit
//	engine rebuild-indexes --addr ... [--ring ...]
//	engine create-index --addr ... --name ... --kind ... --key ...
//	engine reinsert --addr ... --target ... <ids...>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamware/ringdb/internal/enginelog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "engine runs a single-process ring-stack storage core",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(rebuildIndexesCmd)
	rootCmd.AddCommand(createIndexCmd)
	rootCmd.AddCommand(reinsertCmd)
	rootCmd.AddCommand(statsCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	enginelog.Init(enginelog.Config{
		Level:      enginelog.Level(level),
		JSONOutput: jsonOut,
	})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
