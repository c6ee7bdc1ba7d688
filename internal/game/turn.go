package game

import (
	"context"
	"fmt"
	"time"
)

// cardsDealtPerPlayer is the starting hand size, dealt to table slots 0..3.
const cardsDealtPerPlayer = 4

// ---------------------------------------------------------------------------
// Deal and initial viewing
// ---------------------------------------------------------------------------

// deal shuffles a fresh deck, seats players in join order, and gives each
// player their starting cards. One card is turned up on the pile and one sits
// facedown as the top of the deck; the remainder stays hidden.
func (g *Game) deal() {
	g.setState(StateDealing)

	shuffled := shuffle(g.rng, newDeck())
	for pos, id := range g.joinOrder {
		g.players[id].TablePosition = pos
	}

	idx := 0
	for _, id := range g.joinOrder {
		for slot := 0; slot < cardsDealtPerPlayer; slot++ {
			g.cards = append(g.cards, &PositionedCard{
				Card:     shuffled[idx],
				Position: tablePosition(id, slot),
				Facedown: true,
			})
			idx++
		}
	}
	g.cards = append(g.cards, &PositionedCard{Card: shuffled[idx], Position: deckPosition(), Facedown: true})
	idx++
	g.cards = append(g.cards, &PositionedCard{Card: shuffled[idx], Position: pilePosition()})
	idx++
	g.hiddenDeck = append([]Card(nil), shuffled[idx:]...)

	g.log.WithField("players", len(g.players)).Info("dealt")
	g.pushEvent(Event{Type: EventText, Message: "Cards dealt, memorize your first two!"})
	g.startInitialViewing()
}

// startInitialViewing lifts every player's first two table cards into that
// player's viewing slots, so each player privately sees their own pair, and
// starts the shared countdown.
func (g *Game) startInitialViewing() {
	for _, id := range g.joinOrder {
		for slot := 0; slot < ViewingSlots; slot++ {
			c := g.cardAt(tablePosition(id, slot))
			if c == nil {
				continue
			}
			origin := c.Position
			c.origin = &origin
			c.Position = viewingPosition(id, slot)
		}
	}

	g.viewingEpoch++
	g.viewingTimer = NewTimer(g.initialViewingDuration, g.enqueueTimed(&g.viewingEpoch, g.viewingEpoch, g.finishInitialViewing))
	g.setState(StateInitialViewing)
}

// finishInitialViewing returns the viewed cards to their table slots and
// opens play with the player at table position 0.
func (g *Game) finishInitialViewing() {
	g.viewingTimer = nil
	g.returnViewingCards()
	g.currentTurnTablePosition = 0
	g.setState(StateStartingTurn)
}

// returnViewingCards sends every card still in a viewing slot back to its
// recorded origin. Cards snapped away mid-viewing are already gone.
func (g *Game) returnViewingCards() {
	for _, c := range g.cards {
		if c.Position.Area == AreaViewing && c.origin != nil {
			c.Position = *c.origin
			c.origin = nil
		}
	}
}

// ---------------------------------------------------------------------------
// Turn rotation
// ---------------------------------------------------------------------------

// nextTurn ends the current player's turn and hands play to the next seat,
// skipping anyone who has already taken their final turn. When nobody is
// left to play, the hand is scored.
func (g *Game) nextTurn() {
	for _, c := range g.cards {
		c.Selected = false
	}
	g.previewReturn = ""

	if cur := g.currentTurnSessionID(); cur != "" && g.isCambioRound {
		g.players[cur].HasTakenFinalTurn = true
	}

	n := len(g.players)
	for i := 1; i <= n; i++ {
		pos := (g.currentTurnTablePosition + i) % n
		_, p := g.playerAtTablePosition(pos)
		if p == nil || p.HasTakenFinalTurn {
			continue
		}
		g.currentTurnTablePosition = pos
		g.setState(StateStartingTurn)
		return
	}
	g.endGame()
}

// ---------------------------------------------------------------------------
// Hidden sequences
// ---------------------------------------------------------------------------

// drawHidden pops the next facedown card, reshuffling the hidden pile back
// into the hidden deck when the deck runs dry.
func (g *Game) drawHidden() (Card, bool) {
	if len(g.hiddenDeck) == 0 && len(g.hiddenPile) > 0 {
		g.hiddenDeck = shuffle(g.rng, g.hiddenPile)
		g.hiddenPile = nil
		g.log.Info("recycled pile into deck")
	}
	if len(g.hiddenDeck) == 0 {
		return Card{}, false
	}
	card := g.hiddenDeck[len(g.hiddenDeck)-1]
	g.hiddenDeck = g.hiddenDeck[:len(g.hiddenDeck)-1]
	return card, true
}

// replenishDeck places a fresh facedown card at the deck position after the
// previous top was taken.
func (g *Game) replenishDeck() {
	if card, ok := g.drawHidden(); ok {
		g.cards = append(g.cards, &PositionedCard{Card: card, Position: deckPosition(), Facedown: true})
	}
}

// promotePile turns up the next buried pile card after the previous top was
// taken.
func (g *Game) promotePile() {
	if len(g.hiddenPile) == 0 {
		return
	}
	card := g.hiddenPile[len(g.hiddenPile)-1]
	g.hiddenPile = g.hiddenPile[:len(g.hiddenPile)-1]
	g.cards = append(g.cards, &PositionedCard{Card: card, Position: pilePosition()})
}

// moveToPile discards c face up onto the pile. The card it covers leaves the
// positioned set and joins the hidden pile.
func (g *Game) moveToPile(c *PositionedCard) {
	if top := g.pileCard(); top != nil && top != c {
		g.hiddenPile = append(g.hiddenPile, top.Card)
		g.removeCard(top)
	}
	c.Position = pilePosition()
	c.Facedown = false
	c.Selected = false
	c.origin = nil
}

// ---------------------------------------------------------------------------
// Tap handling
// ---------------------------------------------------------------------------

// tappedCard resolves an update's position to a currently tappable card.
func (g *Game) tappedCard(u Update) *PositionedCard {
	if u.Position == nil || !u.Position.valid() {
		return nil
	}
	c := g.cardAt(*u.Position)
	if c == nil || !c.CanBeTapped {
		return nil
	}
	return c
}

// handleTurnTap is the turn opener: the current player picks up either the
// facedown top of the deck or the face-up top of the pile. The picked card
// moves to the player's viewing slot while they decide what to do with it.
func (g *Game) handleTurnTap(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() {
		return false
	}
	c := g.tappedCard(u)
	if c == nil {
		return false
	}

	switch c.Position.Area {
	case AreaDeck:
		origin := c.Position
		c.origin = &origin
		c.Position = viewingPosition(sessionID, 0)
		g.replenishDeck()
		g.setState(StateAwaitingDeckSwapChoice)
	case AreaPile:
		origin := c.Position
		c.origin = &origin
		c.Position = viewingPosition(sessionID, 0)
		g.promotePile()
		g.setState(StateAwaitingPileSwapChoice)
	default:
		return false
	}
	return true
}

// handleDeckSwapTap resolves a deck draw: tap the pile to discard the drawn
// card, or tap an own table card to swap it out. Either way a card lands on
// the pile, and its rank decides the special power.
func (g *Game) handleDeckSwapTap(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() {
		return false
	}
	c := g.tappedCard(u)
	if c == nil {
		return false
	}

	drawn := g.cardAt(viewingPosition(sessionID, 0))
	if drawn == nil {
		// The drawn card was snapped away mid-decision; nothing left to place.
		g.nextTurn()
		return true
	}

	switch {
	case c.Position.Area == AreaPile:
		g.state = StateFinishingDeckSwap
		g.moveToPile(drawn)
		g.dispatchSpecialPower(sessionID)
	case c.Position.Area == AreaTable && c.Position.Player == sessionID:
		slot := c.Position
		g.state = StateFinishingDeckSwap
		g.moveToPile(c)
		drawn.Position = slot
		drawn.Facedown = true
		drawn.origin = nil
		g.dispatchSpecialPower(sessionID)
	default:
		return false
	}
	return true
}

// handlePileSwapTap resolves a pile pickup: the taken card must be swapped
// into one of the player's own slots, and the ejected card's rank decides
// the special power.
func (g *Game) handlePileSwapTap(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() {
		return false
	}
	c := g.tappedCard(u)
	if c == nil || c.Position.Area != AreaTable || c.Position.Player != sessionID {
		return false
	}

	picked := g.cardAt(viewingPosition(sessionID, 0))
	if picked == nil {
		g.nextTurn()
		return true
	}

	slot := c.Position
	g.state = StateFinishingPileSwap
	g.moveToPile(c)
	picked.Position = slot
	picked.Facedown = true
	picked.origin = nil
	g.dispatchSpecialPower(sessionID)
	return true
}

// ---------------------------------------------------------------------------
// Special powers
// ---------------------------------------------------------------------------

// dispatchSpecialPower inspects the card newly placed on the pile and routes
// to its power state: 7s and 8s peek at an opponent's card, 9s and 10s peek
// at one's own, jacks blind-swap, queens peek then swap.
func (g *Game) dispatchSpecialPower(sessionID string) {
	g.state = StateStartingSpecialPower
	top := g.pileCard()
	if top == nil {
		g.nextTurn()
		return
	}
	name := g.players[sessionID].Name

	var target State
	switch top.Rank {
	case "7", "8":
		target = StateAwaitingMateLookChoice
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s gets to look at someone else's card", name)})
	case "9", "10":
		target = StateAwaitingMineLookChoice
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s gets to look at one of their own cards", name)})
	case RankJack:
		target = StateAwaitingBlindSwapOwnChoice
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s gets to blind swap", name)})
	case RankQueen:
		target = StateAwaitingQueenLookChoice
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s gets to look and swap", name)})
	default:
		g.nextTurn()
		return
	}

	g.setState(target)
	if !g.anyTappable() {
		// Power has no legal target (for example every opponent slot is
		// empty); skip it rather than stranding the turn.
		g.nextTurn()
	}
}

func (g *Game) anyTappable() bool {
	for _, c := range g.cards {
		if c.CanBeTapped {
			return true
		}
	}
	return false
}

// handleLookTap starts a private preview of the tapped card. Queens continue
// into the swap phase when the preview ends; plain looks end the turn.
func (g *Game) handleLookTap(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() {
		return false
	}
	c := g.tappedCard(u)
	if c == nil {
		return false
	}

	returnTo := State("")
	if g.state == StateAwaitingQueenLookChoice {
		returnTo = StateAwaitingQueenSwapOwnChoice
	}
	g.startPreview(sessionID, c, returnTo)
	return true
}

// startPreview lifts c into the actor's viewing slot for a timed private
// look. previewReturn decides where play resumes when the countdown elapses.
func (g *Game) startPreview(sessionID string, c *PositionedCard, returnTo State) {
	origin := c.Position
	c.origin = &origin
	c.Position = viewingPosition(sessionID, 0)
	g.previewReturn = returnTo

	g.viewingEpoch++
	g.viewingTimer = NewTimer(g.previewDuration, g.enqueueTimed(&g.viewingEpoch, g.viewingEpoch, g.finishPreview))
	g.setState(StatePreviewingCard)
}

// finishPreview returns the previewed card and resumes play. If the card was
// snapped away during the preview there is nothing to return.
func (g *Game) finishPreview() {
	g.viewingTimer = nil
	g.returnViewingCards()

	if g.previewReturn != "" {
		next := g.previewReturn
		g.previewReturn = ""
		g.setState(next)
		if !g.anyTappable() {
			g.nextTurn()
		}
		return
	}
	g.nextTurn()
}

// handleSwapOwnTap selects which of the actor's own cards will be given away
// in a queen or blind swap.
func (g *Game) handleSwapOwnTap(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() {
		return false
	}
	c := g.tappedCard(u)
	if c == nil {
		return false
	}

	c.Selected = true
	switch g.state {
	case StateAwaitingQueenSwapOwnChoice:
		g.setState(StateAwaitingQueenSwapOtherChoice)
	case StateAwaitingBlindSwapOwnChoice:
		g.setState(StateAwaitingBlindSwapOtherChoice)
	default:
		return false
	}
	if !g.anyTappable() {
		g.nextTurn()
	}
	return true
}

// handleSwapOtherTap completes the swap: the previously selected own card and
// the tapped opponent card trade places, both staying facedown.
func (g *Game) handleSwapOtherTap(sessionID string, u Update) bool {
	if sessionID != g.currentTurnSessionID() {
		return false
	}
	c := g.tappedCard(u)
	if c == nil {
		return false
	}

	own := g.selectedCard()
	if own == nil {
		// The selected card was snapped away before the swap completed.
		g.nextTurn()
		return true
	}

	own.Position, c.Position = c.Position, own.Position
	name := g.players[sessionID].Name
	g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s swapped two cards", name)})
	g.nextTurn()
	return true
}

func (g *Game) selectedCard() *PositionedCard {
	for _, c := range g.cards {
		if c.Selected {
			return c
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Game end
// ---------------------------------------------------------------------------

// triggerEmptyTable handles a player emptying their table: the hand enters
// its final round immediately and the empty-handed player takes no more
// turns.
func (g *Game) triggerEmptyTable(sessionID string) {
	player := g.players[sessionID]
	player.HasTakenFinalTurn = true
	if !g.isCambioRound {
		g.isCambioRound = true
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s is out of cards, final round!", player.Name)})
	}
}

// endGame scores the hand, reveals the table, and announces the winner. The
// final result is persisted off the run loop.
func (g *Game) endGame() {
	g.cancelTimers()
	g.returnViewingCards()

	for _, c := range g.cards {
		if c.Position.Area != AreaDeck {
			c.Facedown = false
		}
	}

	scores := g.computeScores()
	result := &FinalResult{Scores: scores}
	if len(scores) > 0 {
		result.Winner = scores[0].Name
	}
	g.result = result

	if result.Winner != "" {
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s wins!", result.Winner)})
		if g.options.Explosions {
			g.pushEvent(Event{Type: EventGraphic, Name: "explosions"})
		}
	}
	g.setState(StateGameOver)
	g.log.WithField("winner", result.Winner).Info("game over")

	if g.store != nil {
		store := g.store
		log := g.log
		id := g.id
		snapshot := *result
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.SaveResult(ctx, id, snapshot); err != nil {
				log.WithError(err).Warn("failed to persist result")
			}
		}()
	}
}
