package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/store"
)

func gcCmd() *cobra.Command {
	var floor int
	var targetMB float64
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Evict low-activation occurrences and reclaim database space",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()

			brain, err := store.OpenBrainStore(store.DefaultBaseDir())
			if err != nil {
				return err
			}
			defer brain.Close()
			st := brain.Store()

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "dry run: would gc with floor=%d target=%.1fMB (size=%d bytes)\n",
					floor, targetMB, st.Size())
				return nil
			}

			var stats store.GCStats
			if targetMB > 0 {
				stats, err = st.GCToTargetSize(int64(targetMB * 1024 * 1024))
			} else {
				stats, err = st.GCPass(floor)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "evicted %d occurrences, removed %d neighborhoods, %d episodes\nsize: %d -> %d bytes\n",
				stats.EvictedOccurrences, stats.RemovedNeighborhoods, stats.RemovedEpisodes, stats.BeforeSize, stats.AfterSize)
			return nil
		},
	}

	cmd.Flags().IntVar(&floor, "floor", 0, "evict occurrences with activation_count at or below this floor")
	cmd.Flags().Float64Var(&targetMB, "target-mb", 0, "iteratively raise the floor until the database is at or below this size")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report current size without evicting anything")
	return cmd
}
