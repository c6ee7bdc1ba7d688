// Package manager owns the registry of live game instances and the mapping
// from sessions to the games and sockets they hold.
package manager

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cambio-games/server/internal/game"
)

// ErrGameNotFound is returned for updates or joins naming an unknown game id.
var ErrGameNotFound = errors.New("game not found")

// maxDisconnectedAge is how long a game with no connected sessions survives
// before the sweeper reclaims it. A game nobody ever joined counts from its
// creation.
const maxDisconnectedAge = time.Hour

const sweepInterval = 10 * time.Minute

type gameEntry struct {
	game      *game.Game
	createdAt time.Time
}

type sessionEntry struct {
	sockets        int
	disconnectedAt time.Time
	games          map[string]struct{}
}

// Manager tracks every live game and session. It hands each new game the
// shared send callback and routes inbound updates to the right instance.
type Manager struct {
	mu       sync.Mutex
	games    map[string]*gameEntry
	sessions map[string]*sessionEntry
	send     game.SendStateToSession

	recorder game.ActionRecorder
	store    game.ResultStore
	log      *logrus.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a manager and starts its reclamation sweeper. recorder and
// store may be nil.
func New(log *logrus.Logger, recorder game.ActionRecorder, store game.ResultStore) *Manager {
	m := &Manager{
		games:    make(map[string]*gameEntry),
		sessions: make(map[string]*sessionEntry),
		recorder: recorder,
		store:    store,
		log:      log,
		stop:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Close stops the sweeper and shuts down every live game.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.games {
		entry.game.Close()
		delete(m.games, id)
	}
}

// AttachSender installs the transport callback that delivers per-session
// client states. Must be called before games are created.
func (m *Manager) AttachSender(send game.SendStateToSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.send = send
}

// dispatch forwards a projection to the currently attached sender.
func (m *Manager) dispatch(sessionID string, state game.ClientState) {
	m.mu.Lock()
	send := m.send
	m.mu.Unlock()
	if send != nil {
		send(sessionID, state)
	}
}

// CreateGame spins up a new instance under a fresh four digit id. Stale
// games are reclaimed first so abandoned ids return to the pool.
func (m *Manager) CreateGame(options game.Options) (string, error) {
	m.reclaim()

	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; attempt < 100; attempt++ {
		id := fmt.Sprintf("%04d", 1000+rand.IntN(9000))
		if _, taken := m.games[id]; taken {
			continue
		}
		g := game.New(id, m.dispatch, options, m.recorder, m.store)
		m.games[id] = &gameEntry{game: g, createdAt: time.Now()}
		m.log.WithField("game", id).Info("game created")
		return id, nil
	}
	return "", errors.New("no game ids available")
}

// TryJoinGame admits a session into a game. Unknown ids fail with
// ErrGameNotFound; joining a game already underway fails with
// game.ErrGameUnderway unless the session is rejoining.
func (m *Manager) TryJoinGame(gameID, sessionID string) error {
	m.mu.Lock()
	entry, ok := m.games[gameID]
	if !ok {
		m.mu.Unlock()
		return ErrGameNotFound
	}
	session := m.sessionLocked(sessionID)
	m.mu.Unlock()

	if err := entry.game.AddPlayer(sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	session.games[gameID] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Update routes one inbound action to its game, joining the session into the
// game first if this is its first update there. The game itself drops
// updates from sessions it has not admitted.
func (m *Manager) Update(sessionID string, u game.Update) error {
	m.mu.Lock()
	entry, ok := m.games[u.GameID]
	if !ok {
		m.mu.Unlock()
		return ErrGameNotFound
	}
	session := m.sessionLocked(sessionID)
	_, member := session.games[u.GameID]
	m.mu.Unlock()

	if !member {
		if err := entry.game.AddPlayer(sessionID); err != nil {
			return err
		}
		m.mu.Lock()
		session.games[u.GameID] = struct{}{}
		m.mu.Unlock()
	}
	entry.game.Update(sessionID, u)
	return nil
}

// ConnectSocketToSession counts a new socket against the session and, on the
// first one, marks the session connected in its games.
func (m *Manager) ConnectSocketToSession(sessionID string) {
	m.mu.Lock()
	session := m.sessionLocked(sessionID)
	session.sockets++
	first := session.sockets == 1
	games := m.sessionGamesLocked(session)
	m.mu.Unlock()

	if first {
		for _, g := range games {
			g.SetPlayerConnectionStatus(sessionID, true)
		}
	}
}

// DisconnectSocketFromSession drops one socket; when the last one goes the
// session is marked disconnected but stays joined, so it can resume.
func (m *Manager) DisconnectSocketFromSession(sessionID string) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	session.sockets--
	last := session.sockets <= 0
	if last {
		session.sockets = 0
		session.disconnectedAt = time.Now()
	}
	games := m.sessionGamesLocked(session)
	m.mu.Unlock()

	if last {
		for _, g := range games {
			g.SetPlayerConnectionStatus(sessionID, false)
		}
	}
}

func (m *Manager) sessionLocked(sessionID string) *sessionEntry {
	session, ok := m.sessions[sessionID]
	if !ok {
		session = &sessionEntry{games: make(map[string]struct{})}
		m.sessions[sessionID] = session
	}
	return session
}

func (m *Manager) sessionGamesLocked(session *sessionEntry) []*game.Game {
	out := make([]*game.Game, 0, len(session.games))
	for id := range session.games {
		if entry, ok := m.games[id]; ok {
			out = append(out, entry.game)
		}
	}
	return out
}

// sweep periodically reclaims finished and stale games, and forgets sessions
// that hold no sockets and no games.
func (m *Manager) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reclaim()
		}
	}
}

func (m *Manager) reclaim() {
	type liveness struct {
		entry     *gameEntry
		connected bool
		lastSeen  time.Time
	}

	// GetState round-trips through each game's run loop, which may itself be
	// mid-broadcast waiting on the manager lock, so it must run unlocked.
	m.mu.Lock()
	snapshot := make(map[string]*liveness, len(m.games))
	for id, entry := range m.games {
		snapshot[id] = &liveness{entry: entry, lastSeen: entry.createdAt}
	}
	for _, session := range m.sessions {
		for gid := range session.games {
			l, ok := snapshot[gid]
			if !ok {
				continue
			}
			if session.sockets > 0 {
				l.connected = true
			} else if session.disconnectedAt.After(l.lastSeen) {
				l.lastSeen = session.disconnectedAt
			}
		}
	}
	m.mu.Unlock()

	doomedIDs := make(map[string]bool)
	for id, l := range snapshot {
		abandoned := !l.connected && time.Since(l.lastSeen) > maxDisconnectedAge
		if abandoned || l.entry.game.GetState() == game.StateExit {
			doomedIDs[id] = true
		}
	}

	m.mu.Lock()
	var doomed []*gameEntry
	for id := range doomedIDs {
		if entry, ok := m.games[id]; ok {
			doomed = append(doomed, entry)
			delete(m.games, id)
			m.log.WithField("game", id).Info("game reclaimed")
		}
	}
	for id, session := range m.sessions {
		if session.sockets > 0 {
			continue
		}
		live := false
		for gid := range session.games {
			if _, ok := m.games[gid]; ok {
				live = true
				break
			}
		}
		if !live {
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, entry := range doomed {
		entry.game.Close()
	}
}
