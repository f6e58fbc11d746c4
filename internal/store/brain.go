package store

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/attention-matters/am/internal/logger"
	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/tokenize"
	"github.com/attention-matters/am/internal/wire"
)

// BrainStore is the single unified database for all agent memory: one
// file, one product, no per-project split.
//
//	~/.attention-matters/
//	└── brain.db
type BrainStore struct {
	store *Store
}

// DefaultBaseDir is ~/.attention-matters, honoring AM_DATA_DIR if set.
func DefaultBaseDir() string {
	if dir := os.Getenv("AM_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".attention-matters")
}

// OpenBrainStore opens (or creates) the unified brain database at baseDir
// (DefaultBaseDir() if empty), migrating the legacy multi-file layout and
// running startup GC as needed.
func OpenBrainStore(baseDir string) (*BrainStore, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", baseDir, err)
	}

	brainPath := filepath.Join(baseDir, "brain.db")
	projectsDir := filepath.Join(baseDir, "projects")

	if _, err := os.Stat(brainPath); os.IsNotExist(err) {
		if _, err := os.Stat(projectsDir); err == nil {
			logger.Info("migrating legacy multi-database layout", "base_dir", baseDir)
			if err := migrateOldLayout(baseDir, brainPath); err != nil {
				logger.Warn("legacy migration failed", "error", err)
			}
		}
	}

	s, err := Open(brainPath)
	if err != nil {
		return nil, err
	}

	if stats, err := s.StartupGC(DBSoftLimitBytes); err != nil {
		logger.Warn("startup gc failed", "error", err)
	} else if stats != nil {
		logger.Info("startup gc complete",
			"evicted_occurrences", stats.EvictedOccurrences,
			"removed_episodes", stats.RemovedEpisodes,
			"before_bytes", stats.BeforeSize,
			"after_bytes", stats.AfterSize)
	}

	return &BrainStore{store: s}, nil
}

// OpenBrainStoreInMemory opens an in-memory brain store, used by tests;
// nothing it saves outlives the process.
func OpenBrainStoreInMemory() (*BrainStore, error) {
	s, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &BrainStore{store: s}, nil
}

// Store exposes the underlying Store for callers needing lower-level
// access (GC CLI verb, stats).
func (b *BrainStore) Store() *Store {
	return b.store
}

// Close issues a final WAL checkpoint (TRUNCATE mode) and releases the
// underlying database connection. Callers on a shutdown path should
// bound this with their own timeout, since the checkpoint blocks on any
// readers still holding the WAL open.
func (b *BrainStore) Close() error {
	if err := b.store.Checkpoint(); err != nil {
		logger.Warn("wal checkpoint failed", "error", err)
	}
	return b.store.Close()
}

// LoadSystem loads the full episode tree from brain.db.
func (b *BrainStore) LoadSystem() (*manifold.System, error) {
	return b.store.LoadSystem()
}

// SaveSystem persists the full episode tree to brain.db.
func (b *BrainStore) SaveSystem(sys *manifold.System) error {
	return b.store.SaveSystem(sys)
}

// MarkSalient adds text to the conscious episode and immediately
// persists the system, returning the new neighborhood's id.
func (b *BrainStore) MarkSalient(sys *manifold.System, text string, r *rand.Rand) (uuid.UUID, error) {
	tokens := tokenize.Tokenize(text)
	id := sys.AddToConscious(tokens, text, r)
	if err := b.store.SaveSystem(sys); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ImportJSONFile loads a wire-format export from path and persists it as
// the brain's entire system.
func (b *BrainStore) ImportJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fault("import_json_file read", err)
	}
	sys, err := wire.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return b.store.SaveSystem(sys)
}

// ExportJSONFile writes the current brain contents to path in wire
// format.
func (b *BrainStore) ExportJSONFile(path string) error {
	sys, err := b.store.LoadSystem()
	if err != nil {
		return err
	}
	data, err := wire.Marshal(sys)
	if err != nil {
		return fmt.Errorf("JSON export failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fault("export_json_file write", err)
	}
	return nil
}
