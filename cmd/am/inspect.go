package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/query"
	"github.com/attention-matters/am/internal/store"
)

func inspectCmd() *cobra.Command {
	var queryText string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:       "inspect <overview|conscious|episodes|neighborhoods>",
		Short:     "Inspect the current memory state",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"overview", "conscious", "episodes", "neighborhoods"},
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

			var matching map[manifold.NeighborhoodRef]bool
			if queryText != "" {
				matching = matchingNeighborhoods(sys, queryText)
			}

			switch args[0] {
			case "overview":
				return inspectOverview(cmd, sys, asJSON)
			case "conscious":
				return inspectEpisode(cmd, sys.ConsciousEpisode, matching, limit, asJSON)
			case "episodes":
				return inspectEpisodeList(cmd, sys, limit, asJSON)
			case "neighborhoods":
				return inspectNeighborhoods(cmd, sys, matching, limit, asJSON)
			default:
				return fmt.Errorf("unknown view %q", args[0])
			}
		},
	}

	cmd.Flags().StringVar(&queryText, "query", "", "restrict neighborhoods shown to ones this query would activate")
	cmd.Flags().IntVar(&limit, "limit", 20, "max items to print")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func matchingNeighborhoods(sys *manifold.System, text string) map[manifold.NeighborhoodRef]bool {
	result := query.ProcessQuery(sys, text)
	out := make(map[manifold.NeighborhoodRef]bool)
	for _, ref := range append(result.Activation.Subconscious, result.Activation.Conscious...) {
		out[manifold.NeighborhoodRef{EpisodeIdx: ref.EpisodeIdx, NeighborhoodIdx: ref.NeighborhoodIdx}] = true
	}
	return out
}

func inspectOverview(cmd *cobra.Command, sys *manifold.System, asJSON bool) error {
	overview := map[string]any{
		"agent_name":         sys.AgentName,
		"occurrences":        sys.N(),
		"subconscious_count": len(sys.Episodes),
		"conscious_nbhds":    len(sys.ConsciousEpisode.Neighborhoods),
	}
	if asJSON {
		return printJSON(cmd, overview)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "agent:              %s\noccurrences:        %d\nsubconscious eps:   %d\nconscious nbhds:    %d\n",
		overview["agent_name"], overview["occurrences"], overview["subconscious_count"], overview["conscious_nbhds"])
	return nil
}

func inspectEpisodeList(cmd *cobra.Command, sys *manifold.System, limit int, asJSON bool) error {
	type row struct {
		Name          string `json:"name"`
		Neighborhoods int    `json:"neighborhoods"`
		Occurrences   int    `json:"occurrences"`
	}
	var rows []row
	for i, ep := range sys.Episodes {
		if i >= limit {
			break
		}
		rows = append(rows, row{Name: ep.Name, Neighborhoods: len(ep.Neighborhoods), Occurrences: ep.Count()})
	}
	if asJSON {
		return printJSON(cmd, rows)
	}
	for _, r := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s nbhds=%-4d occurrences=%d\n", r.Name, r.Neighborhoods, r.Occurrences)
	}
	return nil
}

func inspectEpisode(cmd *cobra.Command, ep manifold.Episode, matching map[manifold.NeighborhoodRef]bool, limit int, asJSON bool) error {
	type row struct {
		SourceText  string `json:"source_text"`
		Occurrences int    `json:"occurrences"`
	}
	var rows []row
	for i, n := range ep.Neighborhoods {
		if matching != nil && !matching[manifold.NeighborhoodRef{EpisodeIdx: manifold.ConsciousEpisodeIndex, NeighborhoodIdx: i}] {
			continue
		}
		if len(rows) >= limit {
			break
		}
		rows = append(rows, row{SourceText: n.SourceText, Occurrences: n.Count()})
	}
	if asJSON {
		return printJSON(cmd, rows)
	}
	for _, r := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", r.Occurrences, r.SourceText)
	}
	return nil
}

func inspectNeighborhoods(cmd *cobra.Command, sys *manifold.System, matching map[manifold.NeighborhoodRef]bool, limit int, asJSON bool) error {
	type row struct {
		Episode     string `json:"episode"`
		SourceText  string `json:"source_text"`
		Type        string `json:"type"`
		Occurrences int    `json:"occurrences"`
	}
	var rows []row
	add := func(episodeName string, episodeIdx int, nbhds []manifold.Neighborhood) {
		for i, n := range nbhds {
			if matching != nil && !matching[manifold.NeighborhoodRef{EpisodeIdx: episodeIdx, NeighborhoodIdx: i}] {
				continue
			}
			if len(rows) >= limit {
				return
			}
			rows = append(rows, row{Episode: episodeName, SourceText: n.SourceText, Type: n.NeighborhoodType.String(), Occurrences: n.Count()})
		}
	}
	add(sys.ConsciousEpisode.Name, manifold.ConsciousEpisodeIndex, sys.ConsciousEpisode.Neighborhoods)
	for i, ep := range sys.Episodes {
		add(ep.Name, i, ep.Neighborhoods)
	}

	if asJSON {
		return printJSON(cmd, rows)
	}
	for _, r := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s [%s] (%d) %s\n", r.Episode, r.Type, r.Occurrences, r.SourceText)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
