package store

import (
	"math/rand"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/tokenize"
)

// BufferThreshold is the number of accumulated conversation pairs at
// which am_buffer drains into a new episode.
const BufferThreshold = 5

// BufferPair is one user/assistant exchange awaiting consolidation.
type BufferPair struct {
	ID            int64
	UserText      string
	AssistantText string
}

// AppendBuffer records one conversation pair.
func (s *Store) AppendBuffer(userText, assistantText string) error {
	_, err := s.db.Exec(
		`INSERT INTO conversation_buffer (user_text, assistant_text) VALUES (?, ?)`,
		userText, assistantText)
	return fault("append_buffer", err)
}

// BufferCount reports how many pairs are currently buffered.
func (s *Store) BufferCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversation_buffer`).Scan(&n)
	if err != nil {
		return 0, fault("buffer_count", err)
	}
	return n, nil
}

// DrainBuffer reads every buffered pair ordered by insertion, in rowid
// order, then deletes them.
func (s *Store) DrainBuffer() ([]BufferPair, error) {
	rows, err := s.db.Query(`SELECT id, user_text, assistant_text FROM conversation_buffer ORDER BY id`)
	if err != nil {
		return nil, fault("drain_buffer select", err)
	}
	var pairs []BufferPair
	for rows.Next() {
		var p BufferPair
		if err := rows.Scan(&p.ID, &p.UserText, &p.AssistantText); err != nil {
			rows.Close()
			return nil, fault("drain_buffer scan", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fault("drain_buffer iterate", err)
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM conversation_buffer`); err != nil {
		return nil, fault("drain_buffer delete", err)
	}
	return pairs, nil
}

// ConsolidateBuffer drains the buffer into a new episode named
// "conversation" once BufferThreshold pairs have accumulated. It returns
// false if the threshold hasn't been reached yet.
func ConsolidateBuffer(s *Store, sys *manifold.System, r *rand.Rand) (bool, error) {
	count, err := s.BufferCount()
	if err != nil {
		return false, err
	}
	if count < BufferThreshold {
		return false, nil
	}
	pairs, err := s.DrainBuffer()
	if err != nil {
		return false, err
	}

	ep := manifold.NewEpisode("conversation")
	for _, p := range pairs {
		text := p.UserText + "\n" + p.AssistantText
		pairEp := tokenize.IngestText(text, "conversation", r)
		ep.Neighborhoods = append(ep.Neighborhoods, pairEp.Neighborhoods...)
	}
	sys.AddEpisode(ep)
	return true, nil
}
