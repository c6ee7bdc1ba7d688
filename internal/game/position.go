package game

import "fmt"

// Area is the kind of location a positioned card occupies.
type Area string

const (
	AreaDeck    Area = "deck"
	AreaPile    Area = "pile"
	AreaTable   Area = "table"
	AreaViewing Area = "viewing"
)

const (
	// TableSlots is the number of facedown slots each player owns.
	TableSlots = 8
	// ViewingSlots is the number of temporary single-viewer slots per player.
	ViewingSlots = 2
)

// Position is a tagged location: the shared deck or pile, or a player-owned
// table or viewing slot. Player and Slot are meaningful only for the table
// and viewing areas.
type Position struct {
	Area   Area   `json:"area"`
	Player string `json:"player,omitempty"`
	Slot   int    `json:"slot"`
}

func deckPosition() Position { return Position{Area: AreaDeck} }
func pilePosition() Position { return Position{Area: AreaPile} }

func tablePosition(p string, s int) Position {
	return Position{Area: AreaTable, Player: p, Slot: s}
}

func viewingPosition(p string, s int) Position {
	return Position{Area: AreaViewing, Player: p, Slot: s}
}

// equals reports whether two positions refer to the same location.
func (p Position) equals(o Position) bool {
	if p.Area != o.Area {
		return false
	}
	if p.Area == AreaDeck || p.Area == AreaPile {
		return true
	}
	return p.Player == o.Player && p.Slot == o.Slot
}

// valid reports whether the position is structurally well-formed. It does not
// check that a card actually occupies it.
func (p Position) valid() bool {
	switch p.Area {
	case AreaDeck, AreaPile:
		return true
	case AreaTable:
		return p.Player != "" && p.Slot >= 0 && p.Slot < TableSlots
	case AreaViewing:
		return p.Player != "" && p.Slot >= 0 && p.Slot < ViewingSlots
	default:
		return false
	}
}

func (p Position) String() string {
	switch p.Area {
	case AreaDeck, AreaPile:
		return string(p.Area)
	default:
		return fmt.Sprintf("%s[%s:%d]", p.Area, p.Player, p.Slot)
	}
}
