package store

const (
	// DBSoftLimitBytes is the on-disk size at which startup GC kicks in.
	DBSoftLimitBytes int64 = 50 * 1024 * 1024
	// DBGCTargetRatio is the fraction of the soft limit a size-targeted
	// pass aims for once the soft limit has been exceeded.
	DBGCTargetRatio = 0.8
)

// GCStats reports what one GCPass removed.
type GCStats struct {
	EvictedOccurrences   int64
	RemovedNeighborhoods int64
	RemovedEpisodes      int64
	BeforeSize           int64
	AfterSize            int64
}

// GCPass evicts occurrences with activation_count <= floor outside the
// conscious episode, then cascades: neighborhoods left with zero
// occurrences are removed, and non-conscious episodes left with zero
// neighborhoods are removed. Ends with a VACUUM.
func (s *Store) GCPass(floor int) (GCStats, error) {
	stats := GCStats{BeforeSize: s.Size()}

	tx, err := s.db.Begin()
	if err != nil {
		return stats, fault("gc_pass begin", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`DELETE FROM occurrences WHERE activation_count <= ? AND neighborhood_id IN (
			SELECT n.id FROM neighborhoods n
			JOIN episodes e ON e.id = n.episode_id
			WHERE e.is_conscious = 0
		)`, floor)
	if err != nil {
		return stats, fault("gc_pass delete occurrences", err)
	}
	stats.EvictedOccurrences, _ = res.RowsAffected()

	res, err = tx.Exec(
		`DELETE FROM neighborhoods WHERE id NOT IN (SELECT DISTINCT neighborhood_id FROM occurrences)`)
	if err != nil {
		return stats, fault("gc_pass delete neighborhoods", err)
	}
	stats.RemovedNeighborhoods, _ = res.RowsAffected()

	res, err = tx.Exec(
		`DELETE FROM episodes WHERE is_conscious = 0 AND id NOT IN (SELECT DISTINCT episode_id FROM neighborhoods)`)
	if err != nil {
		return stats, fault("gc_pass delete episodes", err)
	}
	stats.RemovedEpisodes, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return stats, fault("gc_pass commit", err)
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return stats, fault("gc_pass vacuum", err)
	}

	stats.AfterSize = s.Size()
	return stats, nil
}

// GCToTargetSize repeatedly raises the eviction floor until the database
// file is at or below targetBytes, or a pass evicts nothing further.
func (s *Store) GCToTargetSize(targetBytes int64) (GCStats, error) {
	var last GCStats
	floor := 0
	for {
		stats, err := s.GCPass(floor)
		if err != nil {
			return stats, err
		}
		last = stats
		if stats.AfterSize <= targetBytes {
			return last, nil
		}
		if stats.EvictedOccurrences == 0 {
			return last, nil
		}
		floor++
	}
}

// StartupGC applies the spec's two-stage policy: nothing happens below
// the soft limit; a floor-0 pass first, then (if still over) a
// size-targeted pass at DBGCTargetRatio of the soft limit.
func (s *Store) StartupGC(softLimitBytes int64) (*GCStats, error) {
	if s.Size() < softLimitBytes {
		return nil, nil
	}
	stats, err := s.GCPass(0)
	if err != nil {
		return nil, err
	}
	if stats.AfterSize < softLimitBytes {
		return &stats, nil
	}
	target := int64(float64(softLimitBytes) * DBGCTargetRatio)
	stats, err = s.GCToTargetSize(target)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
