package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}
	cmd.AddCommand(newCacheStatsCommand(), newCacheClearCommand())
	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print cache hit rate and size statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(dbPath)
			if err != nil {
				return err
			}
			if a.store != nil {
				defer a.store.Close()
			}
			stats := a.cache.GetStats()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "optional sqlite path; opened, but this command writes no snapshots to it")
	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var tool, path string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Invalidate cache entries by tool name or path",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp("")
			if err != nil {
				return err
			}
			switch {
			case tool != "":
				n := a.cache.InvalidateTool(tool)
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d entries for tool %q\n", n, tool)
			case path != "":
				n := a.cache.InvalidatePath(path)
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d entries for path %q\n", n, path)
			default:
				n := a.cache.Cleanup()
				fmt.Fprintf(cmd.OutOrStdout(), "swept %d expired entries\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "invalidate all entries for this tool name")
	cmd.Flags().StringVar(&path, "path", "", "invalidate all entries whose key mentions this path")
	return cmd
}
