package game

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeckComposition(t *testing.T) {
	deck := newDeck()
	require.Len(t, deck, 54)

	bySuit := map[Suit]int{}
	jokers := 0
	for _, c := range deck {
		if c.Rank == RankJoker {
			jokers++
			assert.Empty(t, c.Suit)
			continue
		}
		bySuit[c.Suit]++
	}
	assert.Equal(t, 2, jokers)
	for _, suit := range []Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades} {
		assert.Equal(t, 13, bySuit[suit])
	}
}

func TestCardValues(t *testing.T) {
	assert.Equal(t, 1, cardValue(RankAce, SuitClubs))
	assert.Equal(t, 10, cardValue(RankJack, SuitHearts))
	assert.Equal(t, 10, cardValue(RankQueen, SuitSpades))
	assert.Equal(t, 40, cardValue(RankKing, SuitHearts), "red kings are heavy")
	assert.Equal(t, 40, cardValue(RankKing, SuitDiamonds))
	assert.Equal(t, -1, cardValue(RankKing, SuitSpades), "black kings help")
	assert.Equal(t, -1, cardValue(RankKing, SuitClubs))
	assert.Equal(t, 0, cardValue(RankJoker, ""))
	assert.Equal(t, 2, cardValue("2", SuitHearts))
	assert.Equal(t, 10, cardValue("10", SuitClubs))
}

func TestShufflePreservesCards(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	deck := newDeck()
	shuffled := shuffle(rng, deck)

	require.Len(t, shuffled, len(deck))
	count := func(cards []Card) map[Card]int {
		m := map[Card]int{}
		for _, c := range cards {
			m[c]++
		}
		return m
	}
	assert.Equal(t, count(deck), count(shuffled), "shuffle is a permutation")
	assert.Equal(t, newDeck(), deck, "input untouched")
}
