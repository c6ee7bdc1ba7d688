package game

import "fmt"

// handleSnap interrupts play: the snapper claims a visible card matches the
// pile's rank. The interrupted state is saved, any running preview countdown
// is paused, and the snapper gets a short window to tap the card they mean.
func (g *Game) handleSnap(sessionID string, u Update) bool {
	if !g.canBeSnapped {
		return false
	}

	// A viewing countdown that already fired, with its expiry still queued
	// behind this snap, is settled first: drop the queued expiry and finish
	// the viewing now, so the snap interrupts the state that follows it.
	if g.viewingTimer != nil && !g.viewingTimer.Pause() {
		g.viewingEpoch++
		if g.state == StateInitialViewing {
			g.finishInitialViewing()
		} else {
			g.finishPreview()
		}
		if !g.canBeSnapped {
			return true
		}
	}

	player := g.players[sessionID]
	g.playerWhoSnapped = sessionID
	g.savedState = g.state

	g.snapEpoch++
	g.snapTimer = NewTimer(g.snapDuration, g.enqueueTimed(&g.snapEpoch, g.snapEpoch, g.snapTimedOut))
	g.setState(StateSnapSuspension)

	g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s snaps!", player.Name)})
	if g.options.SoundEffects {
		g.pushEvent(Event{Type: EventGraphic, Name: "snapCall"})
	}
	return true
}

// snapOwner is the session a card belongs to for snapping purposes. A card
// in a viewing slot belongs to the table slot it was lifted from, not to the
// viewer; a card drawn from the deck or pile belongs to no one.
func snapOwner(c *PositionedCard) string {
	pos := c.Position
	if pos.Area == AreaViewing && c.origin != nil {
		pos = *c.origin
	}
	if pos.Area == AreaTable {
		return pos.Player
	}
	return ""
}

// markSnappableCards flags the cards the snapper may claim: the ones they
// own, or everyone's when the snapOthers option is on.
func (g *Game) markSnappableCards() {
	for _, c := range g.cards {
		switch c.Position.Area {
		case AreaTable, AreaViewing:
			if g.options.SnapOthers || snapOwner(c) == g.playerWhoSnapped {
				c.CanBeTapped = true
			}
		}
	}
}

// handleSnapTap is the snapper committing to a card inside the snap window.
func (g *Game) handleSnapTap(sessionID string, u Update) bool {
	if sessionID != g.playerWhoSnapped {
		return false
	}
	c := g.tappedCard(u)
	if c == nil {
		return false
	}

	g.snapEpoch++
	if g.snapTimer != nil {
		g.snapTimer.Cancel()
		g.snapTimer = nil
	}
	g.state = StateResolvingSnap
	g.resolveSnap(c)
	return true
}

// resolveSnap compares the claimed card against the pile top. A correct
// claim discards the card; a wrong one costs the snapper a penalty card.
// Claiming someone else's card correctly obliges the snapper to hand over
// one of their own in its place.
func (g *Game) resolveSnap(c *PositionedCard) {
	snapper := g.players[g.playerWhoSnapped]
	top := g.pileCard()

	owner := snapOwner(c)
	slot := c.Position
	if c.Position.Area == AreaViewing && c.origin != nil {
		slot = *c.origin
	}

	if top == nil || c.Rank != top.Rank {
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s snapped wrong and takes a penalty card", snapper.Name)})
		g.penaltyCard(g.playerWhoSnapped)
		if owner != "" && owner != g.playerWhoSnapped {
			g.forfeitToSnapper(c)
			if len(g.tableCards(owner)) == 0 {
				g.triggerEmptyTable(owner)
			}
		}
		g.finishSnap()
		return
	}

	g.moveToPile(c)
	g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s snapped a %s", snapper.Name, c.Rank)})
	if g.options.Explosions {
		g.pushEvent(Event{Type: EventGraphic, Name: "explosions"})
	}

	if owner != "" && owner != g.playerWhoSnapped && len(g.tableCards(g.playerWhoSnapped)) > 0 {
		g.vacatedSlot = &slot
		g.setState(StateAwaitingSnapResolutionChoice)
		g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s gives a card to %s", snapper.Name, g.players[owner].Name)})
		return
	}

	if owner != "" && len(g.tableCards(owner)) == 0 {
		g.triggerEmptyTable(owner)
	}
	g.finishSnap()
}

// handleSnapGiveTap moves one of the snapper's own cards into the slot their
// correct snap emptied on another player's table.
func (g *Game) handleSnapGiveTap(sessionID string, u Update) bool {
	if sessionID != g.playerWhoSnapped || g.vacatedSlot == nil {
		return false
	}
	c := g.tappedCard(u)
	if c == nil {
		return false
	}

	c.Position = *g.vacatedSlot
	g.vacatedSlot = nil

	if len(g.tableCards(sessionID)) == 0 {
		g.triggerEmptyTable(sessionID)
	}
	g.finishSnap()
	return true
}

// snapTimedOut treats an expired snap window as a wrong snap.
func (g *Game) snapTimedOut() {
	g.snapTimer = nil
	snapper := g.players[g.playerWhoSnapped]
	g.state = StateResolvingSnap
	g.pushEvent(Event{Type: EventText, Message: fmt.Sprintf("%s snapped nothing and takes a penalty card", snapper.Name)})
	g.penaltyCard(g.playerWhoSnapped)
	g.finishSnap()
}

// forfeitToSnapper transfers a wrongly claimed opponent card to the snapper,
// or buries it in the hidden pile when the snapper's table is full.
func (g *Game) forfeitToSnapper(c *PositionedCard) {
	if slot := g.firstOpenTableSlot(g.playerWhoSnapped); slot >= 0 {
		c.Position = tablePosition(g.playerWhoSnapped, slot)
		c.Facedown = true
		c.origin = nil
		return
	}
	g.hiddenPile = append(g.hiddenPile, c.Card)
	g.removeCard(c)
}

// penaltyCard deals one facedown card into the player's lowest open slot.
// A full table absorbs no penalty.
func (g *Game) penaltyCard(sessionID string) {
	slot := g.firstOpenTableSlot(sessionID)
	if slot < 0 {
		return
	}
	card, ok := g.drawHidden()
	if !ok {
		return
	}
	g.cards = append(g.cards, &PositionedCard{
		Card:     card,
		Position: tablePosition(sessionID, slot),
		Facedown: true,
	})
}

// finishSnap restores the interrupted state. Tappability and snappability
// are re-derived for the restored state, and a paused preview countdown
// picks up where it left off.
func (g *Game) finishSnap() {
	restored := g.savedState
	g.savedState = ""
	g.playerWhoSnapped = ""
	g.vacatedSlot = nil

	g.setState(restored)
	if g.viewingTimer != nil {
		g.viewingTimer.Resume()
	}
}
