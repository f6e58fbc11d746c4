package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/store"
)

func statsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print memory size and episode/occurrence counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()

			brain, err := store.OpenBrainStore(store.DefaultBaseDir())
			if err != nil {
				return err
			}
			defer brain.Close()

			sys, err := brain.LoadSystem()
			if err != nil {
				return err
			}

			stats := map[string]any{
				"occurrences": sys.N(),
				"episodes":    len(sys.Episodes),
				"conscious":   len(sys.ConsciousEpisode.Neighborhoods),
				"db_bytes":    brain.Store().Size(),
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "occurrences: %v\nepisodes:    %v\nconscious:   %v\ndb size:     %v bytes\n",
				stats["occurrences"], stats["episodes"], stats["conscious"], stats["db_bytes"])
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
