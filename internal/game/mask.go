package game

// MaskedCard is a card as one specific viewer is allowed to see it. A hidden
// card's identity is absent from the payload entirely, not blanked.
type MaskedCard struct {
	Rank        Rank     `json:"rank,omitempty"`
	Suit        Suit     `json:"suit,omitempty"`
	Value       *int     `json:"value,omitempty"`
	Position    Position `json:"position"`
	Facedown    bool     `json:"facedown"`
	CanBeTapped bool     `json:"canBeTapped"`
	Selected    bool     `json:"selected"`
}

// Countdown mirrors the active timer for client display. Type is "viewing"
// for the initial viewing and card previews, "snap" for the snap window.
// Times are in milliseconds.
type Countdown struct {
	Type          string `json:"type"`
	SubjectPlayer string `json:"subjectPlayer,omitempty"`
	RemainingTime int64  `json:"remainingTime"`
	TotalTime     int64  `json:"totalTime"`
}

// ClientState is the full per-viewer projection broadcast after every
// applied update. Identical game state produces identical projections for
// the same viewer.
type ClientState struct {
	ClientStateID        int              `json:"clientStateId"`
	GameID               string           `json:"gameId"`
	SessionID            string           `json:"sessionId"`
	Name                 *string          `json:"name"`
	State                State            `json:"state"`
	CanBeSnapped         bool             `json:"canBeSnapped"`
	CurrentTurnSessionID string           `json:"currentTurnSessionId,omitempty"`
	Countdown            *Countdown       `json:"countdown,omitempty"`
	Cards                []MaskedCard     `json:"cards"`
	Players              []FlatPlayerData `json:"players"`
	Options              Options          `json:"options"`
	Events               []Event          `json:"events,omitempty"`
	Result               *FinalResult     `json:"result,omitempty"`
}

// entitledTapper is the one session whose tappable markers are real: the
// snapper while a snap is being resolved, otherwise the player whose turn
// it is.
func (g *Game) entitledTapper() string {
	switch g.state {
	case StateSnapSuspension, StateAwaitingSnapResolutionChoice:
		return g.playerWhoSnapped
	}
	return g.currentTurnSessionID()
}

// maskCard projects one card for a viewer. Identity is included only when
// the card is face up or sits in the viewer's own viewing slot; tap
// affordances are shown only to the session entitled to act on them.
func (g *Game) maskCard(c *PositionedCard, viewer, entitled string) MaskedCard {
	m := MaskedCard{
		Position:    c.Position,
		Facedown:    c.Facedown,
		Selected:    c.Selected,
		CanBeTapped: c.CanBeTapped && viewer == entitled,
	}

	revealed := !c.Facedown ||
		(c.Position.Area == AreaViewing && c.Position.Player == viewer)
	if revealed {
		m.Rank = c.Rank
		m.Suit = c.Suit
		v := c.Value
		m.Value = &v
	}
	return m
}

// buildClientState assembles the viewer's projection. events is the drained
// queue for this broadcast, filtered per recipient.
func (g *Game) buildClientState(viewer string, events []Event) ClientState {
	entitled := g.entitledTapper()

	cards := make([]MaskedCard, 0, len(g.cards))
	for _, c := range g.cards {
		cards = append(cards, g.maskCard(c, viewer, entitled))
	}

	players := make([]FlatPlayerData, 0, len(g.players))
	for _, id := range g.joinOrder {
		p, ok := g.players[id]
		if !ok || p.Name == "" {
			continue
		}
		players = append(players, FlatPlayerData{SessionID: id, PlayerData: *p})
	}

	var visible []Event
	for _, ev := range events {
		if len(ev.RecipientSessionIDs) == 0 {
			visible = append(visible, ev)
			continue
		}
		for _, id := range ev.RecipientSessionIDs {
			if id == viewer {
				visible = append(visible, ev)
				break
			}
		}
	}

	var name *string
	if p, ok := g.players[viewer]; ok && p.Name != "" {
		n := p.Name
		name = &n
	}

	return ClientState{
		ClientStateID:        g.clientStateID,
		GameID:               g.id,
		SessionID:            viewer,
		Name:                 name,
		State:                g.state,
		CanBeSnapped:         g.canBeSnapped,
		CurrentTurnSessionID: g.currentTurnSessionID(),
		Countdown:            g.activeCountdown(),
		Cards:                cards,
		Players:              players,
		Options:              g.options,
		Events:               visible,
		Result:               g.result,
	}
}

// activeCountdown reports the running or paused timer, snap window first.
func (g *Game) activeCountdown() *Countdown {
	if g.snapTimer != nil {
		if s := g.snapTimer.Status(); s == TimerRunning || s == TimerPaused {
			return &Countdown{
				Type:          "snap",
				SubjectPlayer: g.playerWhoSnapped,
				RemainingTime: g.snapTimer.Remaining().Milliseconds(),
				TotalTime:     g.snapTimer.Total().Milliseconds(),
			}
		}
	}
	if g.viewingTimer != nil {
		if s := g.viewingTimer.Status(); s == TimerRunning || s == TimerPaused {
			subject := ""
			if g.state == StatePreviewingCard {
				subject = g.currentTurnSessionID()
			}
			return &Countdown{
				Type:          "viewing",
				SubjectPlayer: subject,
				RemainingTime: g.viewingTimer.Remaining().Milliseconds(),
				TotalTime:     g.viewingTimer.Total().Milliseconds(),
			}
		}
	}
	return nil
}

// sendStateToAll bumps the projection sequence, drains the event queue once,
// and pushes each admitted session its own masked view.
func (g *Game) sendStateToAll() {
	if g.send == nil {
		return
	}
	g.clientStateID++
	events := g.drainEvents()
	for _, id := range g.joinOrder {
		g.send(id, g.buildClientState(id, events))
	}
}
