package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the tiered cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-tier hit/miss counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env.Tiered.Stats())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear every cache tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Tiered.Clear(cmd.Context()); err != nil {
			return eris.Wrap(err, "clear cache")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <pattern>",
	Short: "Remove cached entries whose keys contain the pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		removed := env.Tiered.InvalidatePattern(cmd.Context(), args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Sweep expired entries from the sqlite tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.SQLite.Prune(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "prune cache")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheInvalidateCmd, cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}
