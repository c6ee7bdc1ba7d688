package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrGameUnderway is returned when a brand-new participant tries to join a
// game that has already left the setup phase.
var ErrGameUnderway = errors.New("game is already underway")

// ErrGameFull is returned when admitting another player would leave the deck
// short at the deal.
var ErrGameFull = errors.New("game is full")

// maxPlayers is capped by the deck: four cards per player at the deal, plus
// one turned up on the pile and one on top of the deck.
const maxPlayers = (54 - 2) / cardsDealtPerPlayer

// Default durations for the engine's countdowns. Overridable per instance
// for tests.
const (
	DefaultInitialViewingDuration = 10 * time.Second
	DefaultPreviewDuration        = 5 * time.Second
	DefaultSnapDuration           = 5 * time.Second
)

// Game is one Cambio instance: the aggregate owning all mutable state. Every
// mutation runs on the instance's own run loop, one operation at a time;
// timer expiries are enqueued on the same loop, so no two handlers for the
// same game ever interleave.
type Game struct {
	id      string
	options Options
	send    SendStateToSession
	log     *logrus.Entry

	state         State
	clientStateID int
	players       map[string]*PlayerData
	joinOrder     []string
	cards         []*PositionedCard
	hiddenDeck    []Card
	hiddenPile    []Card
	events        []Event

	currentTurnTablePosition int
	isCambioRound            bool
	canBeSnapped             bool
	result                   *FinalResult

	// Snap interrupt bookkeeping.
	playerWhoSnapped string
	savedState       State
	vacatedSlot      *Position

	// previewReturn is the state entered when a card preview elapses;
	// empty means the preview ends the turn.
	previewReturn State

	// Each timer kind carries its own generation counter so cancelling one
	// cannot invalidate a queued expiry of the other.
	viewingTimer *Timer
	snapTimer    *Timer
	viewingEpoch int
	snapEpoch    int

	rng *rand.Rand

	actionIndex int
	recorder    ActionRecorder
	store       ResultStore

	initialViewingDuration time.Duration
	previewDuration        time.Duration
	snapDuration           time.Duration

	ops       chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a game instance and starts its run loop. send is the transport
// sink for per-recipient client states; recorder and store may be nil.
func New(id string, send SendStateToSession, options Options, recorder ActionRecorder, store ResultStore) *Game {
	g := &Game{
		id:      id,
		options: options,
		send:    send,
		log:     logrus.WithField("game", id),
		state:   StateSettingUp,
		players: make(map[string]*PlayerData),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),

		recorder: recorder,
		store:    store,

		initialViewingDuration: DefaultInitialViewingDuration,
		previewDuration:        DefaultPreviewDuration,
		snapDuration:           DefaultSnapDuration,

		ops:    make(chan func(), 64),
		closed: make(chan struct{}),
	}
	go g.run()
	return g
}

// run drains the update serializer. Each dequeued operation completes fully,
// including its broadcast, before the next is started.
func (g *Game) run() {
	for {
		select {
		case <-g.closed:
			return
		case fn := <-g.ops:
			fn()
		}
	}
}

// enqueue schedules fn on the run loop. Returns false if the game is closed.
func (g *Game) enqueue(fn func()) bool {
	select {
	case <-g.closed:
		return false
	case g.ops <- fn:
		return true
	}
}

// call runs fn on the run loop and waits for it to complete.
func (g *Game) call(fn func()) bool {
	done := make(chan struct{})
	if !g.enqueue(func() {
		fn()
		close(done)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-g.closed:
		return false
	}
}

// Close permanently stops the instance's run loop and timers. The timer
// fields belong to the run loop, so cancellation is serialized through it
// before the loop is released.
func (g *Game) Close() {
	g.closeOnce.Do(func() {
		g.call(func() { g.cancelTimers() })
		close(g.closed)
	})
}

// ID returns the game's identifier.
func (g *Game) ID() string { return g.id }

// AddPlayer admits a session into the game, or reconnects an existing one.
// Joining an underway game as a new participant fails with ErrGameUnderway.
func (g *Game) AddPlayer(sessionID string) error {
	var err error
	ok := g.call(func() {
		_, existing := g.players[sessionID]
		if g.state != StateSettingUp && !existing {
			err = ErrGameUnderway
			return
		}
		if !existing && len(g.players) >= maxPlayers {
			err = ErrGameFull
			return
		}
		if !existing {
			g.players[sessionID] = &PlayerData{}
			g.joinOrder = append(g.joinOrder, sessionID)
		}
		g.players[sessionID].Connected = true
		g.log.WithField("session", sessionID).Info("player added")
		g.logAction(sessionID, "addPlayer", map[string]any{"reconnect": existing})
		g.sendStateToAll()
	})
	if !ok {
		return ErrGameUnderway
	}
	return err
}

// SetPlayerConnectionStatus flips a player's connected flag and notifies the
// table. Runs on the serializer so it cannot interleave with an update.
func (g *Game) SetPlayerConnectionStatus(sessionID string, connected bool) {
	g.enqueue(func() {
		player, ok := g.players[sessionID]
		if !ok {
			return
		}
		if player.Name != "" && player.Connected != connected {
			word := "disconnected"
			if connected {
				word = "connected"
			}
			g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s %s", player.Name, word)})
		}
		player.Connected = connected
		g.sendStateToAll()
	})
}

// GetPlayerSessionIds returns the session ids of every admitted player.
func (g *Game) GetPlayerSessionIds() []string {
	var ids []string
	g.call(func() {
		ids = append(ids, g.joinOrder...)
	})
	return ids
}

// GetState returns the engine's current state value.
func (g *Game) GetState() State {
	state := StateExit
	g.call(func() { state = g.state })
	return state
}

// Update enqueues an inbound action for serialized processing. Updates from
// unknown sessions are dropped.
func (g *Game) Update(sessionID string, update Update) {
	g.enqueue(func() {
		if _, ok := g.players[sessionID]; !ok {
			return
		}
		if g.handleUpdate(sessionID, update) {
			g.sendStateToAll()
		}
	})
}

// enqueueTimed wraps a timer-expiry handler so it runs on the serializer and
// only if it is still current: armed captures the timer generation at arm
// time, so an expiry superseded while queued is dropped. epoch is only read
// on the run loop.
func (g *Game) enqueueTimed(epoch *int, armed int, fn func()) func() {
	return func() {
		g.enqueue(func() {
			if *epoch != armed {
				return
			}
			fn()
			g.sendStateToAll()
		})
	}
}

// pushEvent appends to the transient event queue drained on broadcast.
func (g *Game) pushEvent(ev Event) {
	g.events = append(g.events, ev)
}

// drainEvents returns and empties the event queue.
func (g *Game) drainEvents() []Event {
	events := g.events
	g.events = nil
	return events
}

// logAction publishes one applied update to the action history, if a
// recorder is configured. Publishing is asynchronous and best-effort.
func (g *Game) logAction(sessionID, action string, detail map[string]any) {
	g.actionIndex++
	if g.recorder == nil {
		return
	}
	rec := ActionRecord{
		GameID:      g.id,
		ActionIndex: g.actionIndex,
		SessionID:   sessionID,
		Action:      action,
		Detail:      detail,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.recorder.RecordAction(ctx, rec); err != nil {
			g.log.WithError(err).Warn("failed to publish action record")
		}
	}()
}

// ---------------------------------------------------------------------------
// Card lookup helpers
// ---------------------------------------------------------------------------

// cardAt returns the positioned card occupying pos, or nil.
func (g *Game) cardAt(pos Position) *PositionedCard {
	for _, c := range g.cards {
		if c.Position.equals(pos) {
			return c
		}
	}
	return nil
}

// deckCard returns the single card at the deck position, or nil.
func (g *Game) deckCard() *PositionedCard { return g.cardAt(deckPosition()) }

// pileCard returns the single face-up card on the pile, or nil.
func (g *Game) pileCard() *PositionedCard { return g.cardAt(pilePosition()) }

// tableCards returns a player's table cards in ascending slot order.
func (g *Game) tableCards(sessionID string) []*PositionedCard {
	out := make([]*PositionedCard, 0, TableSlots)
	for slot := 0; slot < TableSlots; slot++ {
		if c := g.cardAt(tablePosition(sessionID, slot)); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// firstOpenTableSlot returns the lowest unoccupied slot index, or -1 if the
// player's table is full.
func (g *Game) firstOpenTableSlot(sessionID string) int {
	for slot := 0; slot < TableSlots; slot++ {
		if g.cardAt(tablePosition(sessionID, slot)) == nil {
			return slot
		}
	}
	return -1
}

// removeCard detaches a positioned card from play (used when a card returns
// to a hidden sequence).
func (g *Game) removeCard(target *PositionedCard) {
	for i, c := range g.cards {
		if c == target {
			g.cards = append(g.cards[:i], g.cards[i+1:]...)
			return
		}
	}
}

// playerAtTablePosition returns the session holding the given table position.
func (g *Game) playerAtTablePosition(pos int) (string, *PlayerData) {
	for id, p := range g.players {
		if p.TablePosition == pos {
			return id, p
		}
	}
	return "", nil
}

// currentTurnSessionID returns the session whose turn it is, or "" outside
// of play.
func (g *Game) currentTurnSessionID() string {
	switch g.state {
	case StateSettingUp, StateDealing, StateGameOver, StateExit:
		return ""
	}
	id, _ := g.playerAtTablePosition(g.currentTurnTablePosition)
	return id
}
