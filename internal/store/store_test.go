package store

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/tokenize"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildTestSystem(r *rand.Rand) *manifold.System {
	sys := manifold.New("test-agent")
	ep := tokenize.IngestText("hello world. rust and go are both fine.", "episode-1", r)
	sys.AddEpisode(ep)
	sys.AddToConscious([]string{"important", "insight"}, "important insight", r)
	return sys
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.migrate())
	require.NoError(t, s.migrate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(7))
	sys := buildTestSystem(r)

	require.NoError(t, s.SaveSystem(sys))
	loaded, err := s.LoadSystem()
	require.NoError(t, err)

	assert.Equal(t, sys.N(), loaded.N())
	assert.Equal(t, sys.AgentName, loaded.AgentName)
	assert.Equal(t, len(sys.Episodes), len(loaded.Episodes))
	assert.Equal(t, len(sys.ConsciousEpisode.Neighborhoods), len(loaded.ConsciousEpisode.Neighborhoods))

	origOcc := sys.Episodes[0].Neighborhoods[0].Occurrences[0]
	loadedOcc := loaded.Episodes[0].Neighborhoods[0].Occurrences[0]
	assert.Less(t, origOcc.Position.AngularDistance(loadedOcc.Position), 1e-10)
	assert.InDelta(t, origOcc.Phasor.Theta, loadedOcc.Phasor.Theta, 1e-10)
}

func TestIncrementActivation(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(3))
	sys := buildTestSystem(r)
	require.NoError(t, s.SaveSystem(sys))

	occID := sys.Episodes[0].Neighborhoods[0].Occurrences[0].ID
	require.NoError(t, s.IncrementActivation(occID))

	loaded, err := s.LoadSystem()
	require.NoError(t, err)
	found := loaded.Episodes[0].Neighborhoods[0].Occurrences[0]
	assert.EqualValues(t, 1, found.ActivationCount)
}

func TestIncrementActivationMissingID(t *testing.T) {
	s := openTestStore(t)
	err := s.IncrementActivation(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGCPassPreservesConscious(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(11))
	sys := buildTestSystem(r)
	require.NoError(t, s.SaveSystem(sys))

	stats, err := s.GCPass(1000000)
	require.NoError(t, err)
	assert.Positive(t, stats.EvictedOccurrences)

	loaded, err := s.LoadSystem()
	require.NoError(t, err)
	assert.Empty(t, loaded.Episodes)
	assert.NotEmpty(t, loaded.ConsciousEpisode.Neighborhoods)
}

func TestGCPassNeverTouchesLowFloor(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(5))
	sys := buildTestSystem(r)
	require.NoError(t, s.SaveSystem(sys))

	stats, err := s.GCPass(-1)
	require.NoError(t, err)
	assert.Zero(t, stats.EvictedOccurrences)

	loaded, err := s.LoadSystem()
	require.NoError(t, err)
	assert.Equal(t, sys.N(), loaded.N())
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetMetadata("agent_name", "echo"))
	v, err := s.GetMetadata("agent_name")
	require.NoError(t, err)
	assert.Equal(t, "echo", v)

	missing, err := s.GetMetadata("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestConversationBufferDrainsAtThreshold(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < BufferThreshold-1; i++ {
		require.NoError(t, s.AppendBuffer("hi", "hello"))
	}
	count, err := s.BufferCount()
	require.NoError(t, err)
	assert.Equal(t, BufferThreshold-1, count)

	r := rand.New(rand.NewSource(1))
	sys := manifold.New("test")
	drained, err := ConsolidateBuffer(s, sys, r)
	require.NoError(t, err)
	assert.False(t, drained)

	require.NoError(t, s.AppendBuffer("last", "pair"))
	drained, err = ConsolidateBuffer(s, sys, r)
	require.NoError(t, err)
	assert.True(t, drained)
	assert.Len(t, sys.Episodes, 1)
	assert.Equal(t, "conversation", sys.Episodes[0].Name)

	remaining, err := s.BufferCount()
	require.NoError(t, err)
	assert.Zero(t, remaining)
}
