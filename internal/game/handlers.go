package game

import "fmt"

// handlerFunc processes one permitted action. It returns true if the game
// mutated (and therefore must broadcast); protocol violations return false
// and are dropped without a broadcast.
type handlerFunc func(g *Game, sessionID string, u Update) bool

// transitions is the single dispatch artifact: the per-state permitted-action
// whitelist and the handler table are the same map. An action absent from the
// current state's row is silently ignored — that is the normal resolution of
// races between state changes and in-flight client input.
//
// Populated in init: the handlers reach back into the table through
// stateAllows, so a composite literal initializer would be cyclic.
var transitions map[State]map[Action]handlerFunc

func init() {
	transitions = map[State]map[Action]handlerFunc{
		StateSettingUp: {
			ActionSetName:       (*Game).handleSetName,
			ActionIndicateReady: (*Game).handleIndicateReady,
			ActionLeave:         (*Game).handleLeave,
		},
		StateDealing: {
			ActionLeave: (*Game).handleLeave,
		},
		StateInitialViewing: {
			ActionSnap:  (*Game).handleSnap,
			ActionLeave: (*Game).handleLeave,
		},
		StateSnapSuspension: {
			ActionTapCard: (*Game).handleSnapTap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateResolvingSnap: {
			ActionLeave: (*Game).handleLeave,
		},
		StateAwaitingSnapResolutionChoice: {
			ActionTapCard: (*Game).handleSnapGiveTap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateStartingTurn: {
			ActionTapCard: (*Game).handleTurnTap,
			ActionSnap:    (*Game).handleSnap,
			ActionCambio:  (*Game).handleCambio,
			ActionPass:    (*Game).handlePass,
			ActionLeave:   (*Game).handleLeave,
		},
		StateAwaitingDeckSwapChoice: {
			ActionTapCard: (*Game).handleDeckSwapTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateFinishingDeckSwap: {
			ActionLeave: (*Game).handleLeave,
		},
		StateAwaitingPileSwapChoice: {
			ActionTapCard: (*Game).handlePileSwapTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateFinishingPileSwap: {
			ActionLeave: (*Game).handleLeave,
		},
		StateStartingSpecialPower: {
			ActionLeave: (*Game).handleLeave,
		},
		StateAwaitingMateLookChoice: {
			ActionTapCard: (*Game).handleLookTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StatePreviewingCard: {
			ActionSnap:  (*Game).handleSnap,
			ActionLeave: (*Game).handleLeave,
		},
		StateAwaitingMineLookChoice: {
			ActionTapCard: (*Game).handleLookTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateAwaitingQueenLookChoice: {
			ActionTapCard: (*Game).handleLookTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateAwaitingQueenSwapOwnChoice: {
			ActionTapCard: (*Game).handleSwapOwnTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateAwaitingQueenSwapOtherChoice: {
			ActionTapCard: (*Game).handleSwapOtherTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateAwaitingBlindSwapOwnChoice: {
			ActionTapCard: (*Game).handleSwapOwnTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateAwaitingBlindSwapOtherChoice: {
			ActionTapCard: (*Game).handleSwapOtherTap,
			ActionSnap:    (*Game).handleSnap,
			ActionLeave:   (*Game).handleLeave,
		},
		StateGameOver: {
			ActionRequestRematch: (*Game).handleRequestRematch,
			ActionLeave:          (*Game).handleLeave,
		},
		StateExit: {},
	}
}

// stateAllows reports whether action is whitelisted in state.
func stateAllows(state State, action Action) bool {
	_, ok := transitions[state][action]
	return ok
}

// handleUpdate validates an action against the current state's whitelist and
// dispatches it. Returns true if state mutated.
func (g *Game) handleUpdate(sessionID string, u Update) bool {
	handler, ok := transitions[g.state][u.Action]
	if !ok {
		g.log.WithFields(map[string]any{
			"session": sessionID,
			"state":   g.state,
			"action":  u.Action,
		}).Debug("action not permitted in current state, dropping")
		return false
	}
	if !handler(g, sessionID, u) {
		return false
	}
	g.logAction(sessionID, string(u.Action), nil)
	return true
}

// setState transitions the canonical state value and recomputes the derived
// flags: canBeSnapped follows the new state's whitelist, and the tappable
// set is rebuilt wholesale (never left stale from a prior state).
func (g *Game) setState(s State) {
	g.state = s
	g.canBeSnapped = stateAllows(s, ActionSnap) && g.pileCard() != nil
	g.recomputeTappable()
}

// recomputeTappable rebuilds canBeTapped across every positioned card for
// the current state.
func (g *Game) recomputeTappable() {
	for _, c := range g.cards {
		c.CanBeTapped = false
	}

	actor := g.currentTurnSessionID()
	switch g.state {
	case StateStartingTurn:
		if c := g.deckCard(); c != nil {
			c.CanBeTapped = true
		}
		if c := g.pileCard(); c != nil {
			c.CanBeTapped = true
		}

	case StateAwaitingDeckSwapChoice:
		// Swap into an own slot, or tap the pile to discard the drawn card.
		if c := g.pileCard(); c != nil {
			c.CanBeTapped = true
		}
		for _, c := range g.tableCards(actor) {
			c.CanBeTapped = true
		}

	case StateAwaitingPileSwapChoice:
		// The picked-up pile card must be swapped in; own table cards only.
		for _, c := range g.tableCards(actor) {
			c.CanBeTapped = true
		}

	case StateAwaitingMineLookChoice, StateAwaitingQueenSwapOwnChoice, StateAwaitingBlindSwapOwnChoice:
		for _, c := range g.tableCards(actor) {
			c.CanBeTapped = true
		}

	case StateAwaitingMateLookChoice, StateAwaitingQueenLookChoice,
		StateAwaitingQueenSwapOtherChoice, StateAwaitingBlindSwapOtherChoice:
		for id := range g.players {
			if id == actor {
				continue
			}
			for _, c := range g.tableCards(id) {
				c.CanBeTapped = true
			}
		}

	case StateSnapSuspension:
		g.markSnappableCards()

	case StateAwaitingSnapResolutionChoice:
		for _, c := range g.tableCards(g.playerWhoSnapped) {
			c.CanBeTapped = true
		}
	}
}

// ---------------------------------------------------------------------------
// Setup, rematch, and turn-level simple actions
// ---------------------------------------------------------------------------

func (g *Game) handleSetName(sessionID string, u Update) bool {
	player := g.players[sessionID]
	if u.Name == "" {
		return false
	}
	player.Name = u.Name
	return true
}

func (g *Game) handleIndicateReady(sessionID string, u Update) bool {
	player := g.players[sessionID]
	if player.Name == "" {
		return false
	}
	player.Ready = true

	if len(g.players) >= 2 && g.allPlayersReady() {
		g.deal()
	}
	return true
}

func (g *Game) allPlayersReady() bool {
	for _, p := range g.players {
		if p.Name == "" || !p.Ready {
			return false
		}
	}
	return true
}

func (g *Game) handleLeave(sessionID string, u Update) bool {
	if player, ok := g.players[sessionID]; ok && player.Name != "" {
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s left the game", player.Name)})
	}
	delete(g.players, sessionID)
	for i, id := range g.joinOrder {
		if id == sessionID {
			g.joinOrder = append(g.joinOrder[:i], g.joinOrder[i+1:]...)
			break
		}
	}
	g.cancelTimers()
	g.setState(StateExit)
	g.log.WithField("session", sessionID).Info("player left, game entering exit state")
	return true
}

// cancelTimers permanently removes any running countdowns.
func (g *Game) cancelTimers() {
	g.viewingEpoch++
	g.snapEpoch++
	if g.viewingTimer != nil {
		g.viewingTimer.Cancel()
		g.viewingTimer = nil
	}
	if g.snapTimer != nil {
		g.snapTimer.Cancel()
		g.snapTimer = nil
	}
}

func (g *Game) handlePass(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() {
		return false
	}
	player := g.players[sessionID]
	g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s passes", player.Name)})
	g.nextTurn()
	return true
}

func (g *Game) handleCambio(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() || g.isCambioRound {
		return false
	}
	player := g.players[sessionID]
	g.isCambioRound = true
	player.HasTakenFinalTurn = true
	g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s calls Cambio!", player.Name)})
	if g.options.SoundEffects {
		g.pushEvent(Event{Type: EventGraphic, Name: "cambioCall"})
	}
	g.nextTurn()
	return true
}

func (g *Game) handleRequestRematch(sessionID string, u Update) bool {
	player := g.players[sessionID]
	if player.HasRequestedRematch {
		return false
	}
	player.HasRequestedRematch = true
	g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s wants a rematch", player.Name)})

	for _, p := range g.players {
		if !p.HasRequestedRematch {
			return true
		}
	}
	g.resetForRematch()
	return true
}

// resetForRematch returns the instance to the setup phase: cards cleared,
// table positions and per-hand flags reset, names kept.
func (g *Game) resetForRematch() {
	g.cancelTimers()
	g.cards = nil
	g.hiddenDeck = nil
	g.hiddenPile = nil
	g.currentTurnTablePosition = 0
	g.isCambioRound = false
	g.playerWhoSnapped = ""
	g.result = nil
	g.vacatedSlot = nil
	for _, p := range g.players {
		p.Ready = false
		p.TablePosition = 0
		p.HasRequestedRematch = false
		p.HasTakenFinalTurn = false
	}
	g.pushEvent(Event{Type: EventText, Message: "Rematch! Ready up to deal again"})
	g.setState(StateSettingUp)
}
