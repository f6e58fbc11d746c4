package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/query"
	"github.com/attention-matters/am/internal/store"
	"github.com/attention-matters/am/internal/surface"
)

func queryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a query against the memory and print the composed context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			text := strings.Join(args, " ")

			brain, err := store.OpenBrainStore(store.DefaultBaseDir())
			if err != nil {
				return err
			}
			defer brain.Close()

			sys, err := brain.LoadSystem()
			if err != nil {
				return err
			}

			result := query.ProcessQuery(sys, text)
			surfaced := surface.ComputeSurface(sys, result)
			composed := surface.ComposeFixed(sys, surfaced, result)

			if err := brain.SaveSystem(sys); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(composed)
			}

			fmt.Fprintln(cmd.OutOrStdout(), composed.Context)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full composed result as JSON")
	return cmd
}
