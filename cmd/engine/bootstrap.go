package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/ringdb/internal/engine"
	"github.com/dreamware/ringdb/internal/engineconfig"
	"github.com/dreamware/ringdb/internal/enginelog"
	"github.com/dreamware/ringdb/internal/objectmodel"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <config.yaml> <seed.yaml>",
	Short: "Load a seed data file into the bottom ring, then exit",
	Args:  cobra.ExactArgs(2),
	RunE:  runBootstrap,
}

// seedEntry is one record of a bootstrap seed file: __id plus either
// inline object fields or a __data value. A __data mapping becomes the
// object's data as is; any other __data value is stored under the
// single field "value".
type seedEntry map[string]any

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := engineconfig.Load(args[0])
	if err != nil {
		return err
	}
	db, err := engineconfig.BuildForSeeding(cfg)
	if err != nil {
		return fmt.Errorf("building ring stack: %w", err)
	}

	raw, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var entries []seedEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	bottom := bottomRingName(cfg)
	for _, e := range entries {
		id, ok := e["__id"]
		if !ok {
			return fmt.Errorf("seed entry missing __id: %v", e)
		}
		idInt, err := toInt64(id)
		if err != nil {
			return fmt.Errorf("seed entry __id: %w", err)
		}

		data := e
		if inner, ok := e["__data"]; ok {
			if m, ok := inner.(map[string]any); ok {
				data = m
			} else {
				data = map[string]any{"value": inner}
			}
		} else {
			delete(data, "__id")
		}

		opts := engine.InsertOptions{Ring: bottom, ExplicitID: idInt, HasExplicitID: true}
		if cat, ok := e["__cat"]; ok {
			catInt, err := toInt64(cat)
			if err == nil {
				opts.CategoryID, opts.HasCategory = catInt, true
			}
		}
		if _, err := db.Insert(objectmodel.DataFromJSON(data), opts); err != nil {
			return fmt.Errorf("inserting seed record %d: %w", idInt, err)
		}
	}

	enginelog.Logger.Info().Int("count", len(entries)).Msg("bootstrap loaded")
	return nil
}

// bottomRingName returns the first ring declared in cfg, which by
// engineconfig.Build's bottom-up convention is the stack's base.
func bottomRingName(cfg *engineconfig.Config) string {
	if len(cfg.Rings) == 0 {
		return ""
	}
	return cfg.Rings[0].Name
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
