package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/store"
	syncpkg "github.com/attention-matters/am/internal/sync"
	"github.com/attention-matters/am/internal/tokenize"
)

func syncCmd() *cobra.Command {
	var all bool
	var dryRun bool
	var claudeDir string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ingest Claude Code session transcripts for this project into memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()

			dir := syncpkg.ResolveClaudeDir(claudeDir)
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			projectDir := syncpkg.FindProjectDir(dir, cwd)
			if projectDir == "" {
				return fmt.Errorf("no Claude Code transcripts found for %s under %s", cwd, dir)
			}

			sessions, err := syncpkg.DiscoverSessions(projectDir)
			if err != nil {
				return err
			}
			if !all && len(sessions) > 1 {
				latest := sessions[len(sessions)-1]
				var latestMod time.Time
				for _, s := range sessions {
					if info, err := os.Stat(s.Path); err == nil && info.ModTime().After(latestMod) {
						latest, latestMod = s, info.ModTime()
					}
				}
				sessions = []syncpkg.SessionInfo{latest}
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

			r := newCLIRand()
			ingested := 0
			for _, s := range sessions {
				text, err := syncpkg.ExtractSessionText(s.Path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: %v\n", s.SessionID, err)
					continue
				}
				if text == "" {
					continue
				}
				if dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "would ingest session %s (%d bytes)\n", s.SessionID, len(text))
					continue
				}
				ep := tokenize.IngestText(text, "session-"+s.SessionID, r)
				sys.AddEpisode(ep)
				ingested++
			}

			if dryRun {
				return nil
			}
			if err := brain.SaveSystem(sys); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d session(s)\n", ingested)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "ingest every discovered session, not just the most recent")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be ingested without writing")
	cmd.Flags().StringVar(&claudeDir, "dir", "", "override the Claude Code config directory")
	return cmd
}
