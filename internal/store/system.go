package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/quaternion"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// SaveSystem persists the full episode tree in one transaction: children
// are deleted first (occurrences, neighborhoods, episodes), then the
// agent name and every episode/neighborhood/occurrence is inserted back in
// list order. The conscious episode is written alongside the subconscious
// ones, flagged by is_conscious.
func (s *Store) SaveSystem(sys *manifold.System) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fault("save_system begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM occurrences"); err != nil {
		return fault("save_system delete occurrences", err)
	}
	if _, err := tx.Exec("DELETE FROM neighborhoods"); err != nil {
		return fault("save_system delete neighborhoods", err)
	}
	if _, err := tx.Exec("DELETE FROM episodes"); err != nil {
		return fault("save_system delete episodes", err)
	}

	if _, err := tx.Exec(`INSERT INTO metadata (key, value) VALUES ('agent_name', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, sys.AgentName); err != nil {
		return fault("save_system agent_name", err)
	}

	insertEpisode := func(ep *manifold.Episode) error {
		if _, err := tx.Exec(
			`INSERT INTO episodes (id, name, is_conscious, timestamp) VALUES (?, ?, ?, ?)`,
			ep.ID.String(), ep.Name, boolToInt(ep.IsConscious), ep.Timestamp.UTC().Format(timestampLayout),
		); err != nil {
			return fmt.Errorf("insert episode %s: %w", ep.ID, err)
		}
		for _, nbhd := range ep.Neighborhoods {
			seed := nbhd.Seed.ToArray()
			if _, err := tx.Exec(
				`INSERT INTO neighborhoods (id, episode_id, seed_w, seed_x, seed_y, seed_z, source_text, neighborhood_type)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				nbhd.ID.String(), ep.ID.String(), seed[0], seed[1], seed[2], seed[3], nbhd.SourceText, nbhd.NeighborhoodType.String(),
			); err != nil {
				return fmt.Errorf("insert neighborhood %s: %w", nbhd.ID, err)
			}
			for _, occ := range nbhd.Occurrences {
				pos := occ.Position.ToArray()
				if _, err := tx.Exec(
					`INSERT INTO occurrences (id, neighborhood_id, word, pos_w, pos_x, pos_y, pos_z, phasor_theta, activation_count)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					occ.ID.String(), nbhd.ID.String(), occ.Word, pos[0], pos[1], pos[2], pos[3], occ.Phasor.Theta, occ.ActivationCount,
				); err != nil {
					return fmt.Errorf("insert occurrence %s: %w", occ.ID, err)
				}
			}
		}
		return nil
	}

	for i := range sys.Episodes {
		if err := insertEpisode(&sys.Episodes[i]); err != nil {
			return fault("save_system", err)
		}
	}
	if err := insertEpisode(&sys.ConsciousEpisode); err != nil {
		return fault("save_system conscious", err)
	}

	if err := tx.Commit(); err != nil {
		return fault("save_system commit", err)
	}
	return nil
}

// LoadSystem reconstructs the episode tree, ordered by insertion rowid at
// every level. The is_conscious row is routed to the conscious slot;
// every other episode is appended in order. The returned system is marked
// dirty.
func (s *Store) LoadSystem() (*manifold.System, error) {
	agentName, err := s.GetMetadata("agent_name")
	if err != nil {
		return nil, fault("load_system agent_name", err)
	}
	sys := manifold.New(agentName)
	sys.Episodes = nil

	epRows, err := s.db.Query(`SELECT id, name, is_conscious, timestamp FROM episodes ORDER BY rowid`)
	if err != nil {
		return nil, fault("load_system episodes", err)
	}
	defer epRows.Close()

	type episodeRow struct {
		id          uuid.UUID
		name        string
		isConscious bool
		timestamp   string
	}
	var rows []episodeRow
	for epRows.Next() {
		var idStr, name, ts string
		var isConscious int
		if err := epRows.Scan(&idStr, &name, &isConscious, &ts); err != nil {
			return nil, fault("load_system scan episode", err)
		}
		id, _ := uuid.Parse(idStr)
		rows = append(rows, episodeRow{id: id, name: name, isConscious: isConscious != 0, timestamp: ts})
	}
	if err := epRows.Err(); err != nil {
		return nil, fault("load_system episodes iterate", err)
	}

	for _, row := range rows {
		ep := manifold.NewEpisode(row.name)
		ep.ID = row.id
		ep.IsConscious = row.isConscious
		ep.Timestamp = parseTimestamp(row.timestamp)

		neighborhoods, err := s.loadNeighborhoods(row.id)
		if err != nil {
			return nil, err
		}
		ep.Neighborhoods = neighborhoods

		if row.isConscious {
			sys.ConsciousEpisode = ep
		} else {
			sys.Episodes = append(sys.Episodes, ep)
		}
	}

	sys.MarkDirty()
	return sys, nil
}

func (s *Store) loadNeighborhoods(episodeID uuid.UUID) ([]manifold.Neighborhood, error) {
	rows, err := s.db.Query(
		`SELECT id, seed_w, seed_x, seed_y, seed_z, source_text, neighborhood_type
		 FROM neighborhoods WHERE episode_id = ? ORDER BY rowid`, episodeID.String())
	if err != nil {
		return nil, fault("load_system neighborhoods", err)
	}
	defer rows.Close()

	var neighborhoods []manifold.Neighborhood
	for rows.Next() {
		var idStr, sourceText, ntype string
		var w, x, y, z float64
		if err := rows.Scan(&idStr, &w, &x, &y, &z, &sourceText, &ntype); err != nil {
			return nil, fault("load_system scan neighborhood", err)
		}
		id, _ := uuid.Parse(idStr)
		nbhd := manifold.NewNeighborhood(quaternion.New(w, x, y, z), sourceText)
		nbhd.ID = id
		nbhd.NeighborhoodType = manifold.NeighborhoodTypeFromString(ntype)
		neighborhoods = append(neighborhoods, nbhd)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("load_system neighborhoods iterate", err)
	}
	rows.Close()

	// Occurrences are loaded after the neighborhood rows are closed, so no
	// second connection is opened while a result set is still live (a second
	// connection to ":memory:" would see a different, empty database).
	for i := range neighborhoods {
		occs, err := s.loadOccurrences(neighborhoods[i].ID)
		if err != nil {
			return nil, err
		}
		neighborhoods[i].Occurrences = occs
	}
	return neighborhoods, nil
}

func (s *Store) loadOccurrences(neighborhoodID uuid.UUID) ([]manifold.Occurrence, error) {
	rows, err := s.db.Query(
		`SELECT id, word, pos_w, pos_x, pos_y, pos_z, phasor_theta, activation_count
		 FROM occurrences WHERE neighborhood_id = ? ORDER BY rowid`, neighborhoodID.String())
	if err != nil {
		return nil, fault("load_system occurrences", err)
	}
	defer rows.Close()

	var occs []manifold.Occurrence
	for rows.Next() {
		var idStr, word string
		var w, x, y, z, theta float64
		var activation uint32
		if err := rows.Scan(&idStr, &word, &w, &x, &y, &z, &theta, &activation); err != nil {
			return nil, fault("load_system scan occurrence", err)
		}
		id, _ := uuid.Parse(idStr)
		occ := manifold.NewOccurrence(word, quaternion.New(w, x, y, z), quaternion.NewPhasor(theta), neighborhoodID)
		occ.ID = id
		occ.ActivationCount = activation
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("load_system occurrences iterate", err)
	}
	return occs, nil
}

// IncrementActivation is a one-row UPDATE; it fails cleanly (ErrNotFound)
// if the occurrence id does not exist.
func (s *Store) IncrementActivation(id uuid.UUID) error {
	res, err := s.db.Exec(`UPDATE occurrences SET activation_count = activation_count + 1 WHERE id = ?`, id.String())
	if err != nil {
		return fault("increment_activation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fault("increment_activation rows_affected", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PositionUpdate is one entry in a SaveOccurrencePositions batch.
type PositionUpdate struct {
	ID       uuid.UUID
	Position [4]float64
	Phasor   float64
}

// SaveOccurrencePositions applies a batch of position/phasor updates in
// one transaction using a single prepared statement.
func (s *Store) SaveOccurrencePositions(updates []PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fault("save_positions begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE occurrences SET pos_w = ?, pos_x = ?, pos_y = ?, pos_z = ?, phasor_theta = ? WHERE id = ?`)
	if err != nil {
		return fault("save_positions prepare", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.Exec(u.Position[0], u.Position[1], u.Position[2], u.Position[3], u.Phasor, u.ID.String()); err != nil {
			return fault("save_positions exec", err)
		}
	}
	return fault("save_positions commit", tx.Commit())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTimestamp accepts the layout this store writes; an unparsable or
// empty value yields the zero time rather than an error; a row's
// timestamp isn't load-bearing for recall geometry.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
