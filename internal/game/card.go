// Package game implements the authoritative Cambio engine: one instance owns
// one game's full state — every card's identity and location, the turn order,
// the per-state permitted actions, and what each player is allowed to see.
package game

import "math/rand/v2"

// Suit of a card. Jokers carry no suit.
type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
)

// Rank of a card. Number cards use their digit string ("2".."10").
type Rank string

const (
	RankAce   Rank = "ace"
	RankJack  Rank = "jack"
	RankQueen Rank = "queen"
	RankKing  Rank = "king"
	RankJoker Rank = "joker"
)

// Card is an immutable identity: rank, suit, and point value. Value is fixed
// at shuffle time and never changes (red kings are 40, black kings -1,
// jokers 0, aces 1, court cards 10).
type Card struct {
	Rank  Rank `json:"rank"`
	Suit  Suit `json:"suit,omitempty"`
	Value int  `json:"value"`
}

// PositionedCard is a Card owned by the engine plus its single mutable
// location and the per-state tap/selection flags. origin is set only while
// the card temporarily occupies a viewing slot and records where it came
// from; it governs ownership if the card is snapped mid-preview.
type PositionedCard struct {
	Card
	Position    Position
	Facedown    bool
	CanBeTapped bool
	Selected    bool

	origin *Position
}

var numberRanks = []Rank{"2", "3", "4", "5", "6", "7", "8", "9", "10"}

func cardValue(rank Rank, suit Suit) int {
	switch rank {
	case RankAce:
		return 1
	case RankJack, RankQueen:
		return 10
	case RankKing:
		if suit == SuitHearts || suit == SuitDiamonds {
			return 40
		}
		return -1
	case RankJoker:
		return 0
	default: // "2".."10"
		n := 0
		for _, ch := range rank {
			n = n*10 + int(ch-'0')
		}
		return n
	}
}

// newDeck builds the full 54-card set: 52 suited cards plus two jokers.
func newDeck() []Card {
	suits := []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}
	ranks := append([]Rank{RankAce}, append(numberRanks, RankJack, RankQueen, RankKing)...)

	deck := make([]Card, 0, 54)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{Rank: rank, Suit: suit, Value: cardValue(rank, suit)})
		}
	}
	deck = append(deck, Card{Rank: RankJoker, Value: 0}, Card{Rank: RankJoker, Value: 0})
	return deck
}

// shuffle returns a Fisher-Yates shuffled copy; the input is not modified.
func shuffle(rng *rand.Rand, cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
