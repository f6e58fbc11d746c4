package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/store"
)

func forgetCmd() *cobra.Command {
	var episodeID string
	var consciousID string

	cmd := &cobra.Command{
		Use:   "forget [term]",
		Short: "Hard-delete every occurrence of a term, or a whole episode / conscious neighborhood",
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

			switch {
			case episodeID != "":
				id, err := uuid.Parse(episodeID)
				if err != nil {
					return fmt.Errorf("invalid --episode id: %w", err)
				}
				if !removeEpisode(sys, id) {
					return fmt.Errorf("no episode with id %s", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed episode %s\n", id)

			case consciousID != "":
				id, err := uuid.Parse(consciousID)
				if err != nil {
					return fmt.Errorf("invalid --conscious id: %w", err)
				}
				if !removeConsciousNeighborhood(sys, id) {
					return fmt.Errorf("no conscious neighborhood with id %s", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed conscious neighborhood %s\n", id)

			case len(args) > 0:
				term := args[0]
				removedOccs, removedNbhds, removedEps := sys.ForgetTerm(term)
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %q: removed %d occurrences, %d neighborhoods, %d episodes\n",
					term, removedOccs, removedNbhds, removedEps)

			default:
				return fmt.Errorf("provide a term, --episode <id>, or --conscious <id>")
			}

			sys.MarkDirty()
			return brain.SaveSystem(sys)
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "delete the subconscious episode with this id")
	cmd.Flags().StringVar(&consciousID, "conscious", "", "delete the conscious neighborhood with this id")
	return cmd
}

func removeEpisode(sys *manifold.System, id uuid.UUID) bool {
	for i, ep := range sys.Episodes {
		if ep.ID == id {
			sys.Episodes = append(sys.Episodes[:i], sys.Episodes[i+1:]...)
			return true
		}
	}
	return false
}

func removeConsciousNeighborhood(sys *manifold.System, id uuid.UUID) bool {
	nbhds := sys.ConsciousEpisode.Neighborhoods
	for i, n := range nbhds {
		if n.ID == id {
			sys.ConsciousEpisode.Neighborhoods = append(nbhds[:i], nbhds[i+1:]...)
			return true
		}
	}
	return false
}
