package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the market cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache entry counts and age range",
	Run: func(cmd *cobra.Command, _ []string) {
		stats, err := cacheUsecase.Stats(cmd.Context())
		if err != nil {
			logrus.Fatalf("Failed to read cache stats: %v", err)
		}
		fmt.Printf("Entries:      %d\n", stats.TotalEntries)
		for kind, count := range stats.EntriesByKind {
			fmt.Printf("  %-11s %d\n", kind+":", count)
		}
		fmt.Printf("With errors:  %d\n", stats.ErrorEntries)
		if stats.OldestFetch != nil {
			fmt.Printf("Oldest fetch: %s\n", humanize.Time(*stats.OldestFetch))
		}
		if stats.NewestFetch != nil {
			fmt.Printf("Newest fetch: %s\n", humanize.Time(*stats.NewestFetch))
		}
		if stats.HumanSize != "" {
			fmt.Printf("File size:    %s\n", stats.HumanSize)
		}
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cache entry",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cacheUsecase.Clear(cmd.Context()); err != nil {
			logrus.Fatalf("Failed to clear cache: %v", err)
		}
		fmt.Println("Cache cleared.")
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries older than the retention window",
	Run: func(cmd *cobra.Command, _ []string) {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		result, err := cacheUsecase.Prune(cmd.Context(), olderThan)
		if err != nil {
			logrus.Fatalf("Failed to prune cache: %v", err)
		}
		fmt.Printf("Removed %d entries older than %s.\n", result.Removed, result.OlderThan)
	},
}

func init() {
	cachePruneCmd.Flags().Duration("older-than", 0, "Override the retention window (e.g. 72h); 0 uses the configured default")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
