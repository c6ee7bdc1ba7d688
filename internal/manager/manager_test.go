package manager

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cambio-games/server/internal/game"
)

type sink struct {
	mu     sync.Mutex
	states map[string][]game.ClientState
}

func newSink() *sink {
	return &sink{states: make(map[string][]game.ClientState)}
}

func (s *sink) send(sessionID string, state game.ClientState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = append(s.states[sessionID], state)
}

func (s *sink) lastState(sessionID string) (game.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := s.states[sessionID]
	if len(states) == 0 {
		return "", false
	}
	return states[len(states)-1].State, true
}

func newTestManager(t *testing.T) (*Manager, *sink) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	m := New(log, nil, nil)
	t.Cleanup(m.Close)
	s := newSink()
	m.AttachSender(s.send)
	return m, s
}

func TestCreateGameIssuesFourDigitIDs(t *testing.T) {
	m, _ := newTestManager(t)
	pattern := regexp.MustCompile(`^\d{4}$`)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := m.CreateGame(game.Options{})
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "ids are unique")
		seen[id] = true
	}
}

func TestUpdateUnknownGame(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Update("s1", game.Update{GameID: "9999", Action: game.ActionSetName, Name: "X"})
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, m.TryJoinGame("9999", "s1"), ErrGameNotFound)
}

func TestUpdateAutoJoins(t *testing.T) {
	m, s := newTestManager(t)
	id, err := m.CreateGame(game.Options{})
	require.NoError(t, err)

	require.NoError(t, m.Update("s1", game.Update{GameID: id, Action: game.ActionSetName, Name: "Alice"}))

	require.Eventually(t, func() bool {
		state, ok := s.lastState("s1")
		return ok && state == game.StateSettingUp
	}, time.Second, 5*time.Millisecond)
}

func TestJoinRejectedOnceUnderway(t *testing.T) {
	m, s := newTestManager(t)
	id, err := m.CreateGame(game.Options{})
	require.NoError(t, err)

	for _, player := range []struct{ session, name string }{
		{"s1", "Alice"}, {"s2", "Bob"},
	} {
		require.NoError(t, m.TryJoinGame(id, player.session))
		require.NoError(t, m.Update(player.session, game.Update{GameID: id, Action: game.ActionSetName, Name: player.name}))
		require.NoError(t, m.Update(player.session, game.Update{GameID: id, Action: game.ActionIndicateReady}))
	}

	require.Eventually(t, func() bool {
		state, ok := s.lastState("s1")
		return ok && state == game.StateInitialViewing
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.TryJoinGame(id, "s3"), game.ErrGameUnderway)
	assert.NoError(t, m.TryJoinGame(id, "s1"), "existing players may rejoin")
}

func TestSocketBookkeepingSurvivesUnknownSessions(t *testing.T) {
	m, _ := newTestManager(t)
	m.DisconnectSocketFromSession("never-seen")
	m.ConnectSocketToSession("s1")
	m.ConnectSocketToSession("s1")
	m.DisconnectSocketFromSession("s1")
	m.DisconnectSocketFromSession("s1")
}

func TestReclaimSparesConnectedGames(t *testing.T) {
	m, _ := newTestManager(t)
	id, err := m.CreateGame(game.Options{})
	require.NoError(t, err)

	m.ConnectSocketToSession("s1")
	require.NoError(t, m.TryJoinGame(id, "s1"))

	// Old but live: someone is still connected.
	m.mu.Lock()
	m.games[id].createdAt = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	m.reclaim()
	assert.NoError(t, m.Update("s1", game.Update{GameID: id, Action: game.ActionSetName, Name: "Alice"}))
}

func TestReclaimDropsLongDisconnectedGames(t *testing.T) {
	m, _ := newTestManager(t)
	id, err := m.CreateGame(game.Options{})
	require.NoError(t, err)

	m.ConnectSocketToSession("s1")
	require.NoError(t, m.TryJoinGame(id, "s1"))
	m.DisconnectSocketFromSession("s1")

	// A fresh disconnect is not enough.
	m.reclaim()
	require.NoError(t, m.Update("s1", game.Update{GameID: id, Action: game.ActionSetName, Name: "Alice"}))

	m.mu.Lock()
	m.games[id].createdAt = time.Now().Add(-2 * time.Hour)
	m.sessions["s1"].disconnectedAt = time.Now().Add(-90 * time.Minute)
	m.mu.Unlock()

	m.reclaim()
	assert.ErrorIs(t, m.Update("s1", game.Update{GameID: id, Action: game.ActionSetName, Name: "Alice"}), ErrGameNotFound)
}

func TestReclaimDropsExitedGames(t *testing.T) {
	m, _ := newTestManager(t)
	id, err := m.CreateGame(game.Options{})
	require.NoError(t, err)

	require.NoError(t, m.Update("s1", game.Update{GameID: id, Action: game.ActionSetName, Name: "Alice"}))
	require.NoError(t, m.Update("s1", game.Update{GameID: id, Action: game.ActionLeave}))

	// reclaim's state probe serializes behind the queued leave.
	m.reclaim()
	assert.ErrorIs(t, m.Update("s1", game.Update{GameID: id, Action: game.ActionSetName, Name: "Alice"}), ErrGameNotFound)
}
