package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/attention-matters/am/internal/manifold"
)

// migrateOldLayout merges the pre-unification projects/*.db + global.db
// layout into a single brain database, if present. It only runs when
// projects/ exists and brainPath does not yet have a brain.db on disk —
// callers check that before invoking. Old artifacts are renamed to
// *.migrated, never deleted.
func migrateOldLayout(base, brainPath string) error {
	projectsDir := filepath.Join(base, "projects")
	globalPath := filepath.Join(base, "global.db")

	brainStore, err := Open(brainPath)
	if err != nil {
		return fmt.Errorf("open brain.db for migration: %w", err)
	}
	defer brainStore.Close()

	brainSystem, err := brainStore.LoadSystem()
	if err != nil {
		brainSystem = manifold.New("am")
	}

	existingConscious := func() map[uuid.UUID]struct{} {
		ids := make(map[uuid.UUID]struct{})
		for _, n := range brainSystem.ConsciousEpisode.Neighborhoods {
			ids[n.ID] = struct{}{}
		}
		return ids
	}

	entries, err := os.ReadDir(projectsDir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
				continue
			}
			path := filepath.Join(projectsDir, entry.Name())
			projectStore, err := Open(path)
			if err != nil {
				continue
			}
			projectSystem, err := projectStore.LoadSystem()
			projectStore.Close()
			if err != nil {
				continue
			}
			for _, ep := range projectSystem.Episodes {
				brainSystem.AddEpisode(ep)
			}
			existing := existingConscious()
			for _, nbhd := range projectSystem.ConsciousEpisode.Neighborhoods {
				if _, ok := existing[nbhd.ID]; !ok {
					brainSystem.ConsciousEpisode.AddNeighborhood(nbhd)
				}
			}
		}
	}

	if _, err := os.Stat(globalPath); err == nil {
		if globalStore, err := Open(globalPath); err == nil {
			if globalSystem, err := globalStore.LoadSystem(); err == nil {
				existing := existingConscious()
				for _, nbhd := range globalSystem.ConsciousEpisode.Neighborhoods {
					if _, ok := existing[nbhd.ID]; !ok {
						brainSystem.ConsciousEpisode.AddNeighborhood(nbhd)
					}
				}
			}
			globalStore.Close()
		}
	}

	brainSystem.MarkDirty()
	if err := brainStore.SaveSystem(brainSystem); err != nil {
		return fmt.Errorf("save merged brain.db: %w", err)
	}

	if _, err := os.Stat(projectsDir); err == nil {
		if err := os.Rename(projectsDir, filepath.Join(base, "projects.migrated")); err != nil {
			return fmt.Errorf("rename projects dir: %w", err)
		}
	}
	if _, err := os.Stat(globalPath); err == nil {
		if err := os.Rename(globalPath, filepath.Join(base, "global.db.migrated")); err != nil {
			return fmt.Errorf("rename global.db: %w", err)
		}
	}
	return nil
}
