package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/store"
	"github.com/attention-matters/am/internal/tokenize"
)

func ingestCmd() *cobra.Command {
	var name string
	var fromFile string
	cmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Ingest a document into a new subconscious episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()

			var text string
			switch {
			case fromFile != "":
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return err
				}
				text = string(data)
				if name == "" {
					name = fromFile
				}
			case len(args) > 0:
				text = args[0]
			default:
				return fmt.Errorf("provide text as an argument or --file")
			}
			if name == "" {
				name = "document"
			}

			brain, err := store.OpenBrainStore(store.DefaultBaseDir())
			if err != nil {
				return err
			}
			defer brain.Close()

			sys, err := brain.LoadSystem()
			if err != nil {
				return err
			}

			ep := tokenize.IngestText(text, name, newCLIRand())
			sys.AddEpisode(ep)

			if err := brain.SaveSystem(sys); err != nil {
				return err
			}

			occurrences := 0
			for _, n := range ep.Neighborhoods {
				occurrences += n.Count()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %q: %d neighborhoods, %d occurrences\n", ep.Name, len(ep.Neighborhoods), occurrences)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "episode name (defaults to the file name or \"document\")")
	cmd.Flags().StringVar(&fromFile, "file", "", "read text to ingest from a file")
	return cmd
}
