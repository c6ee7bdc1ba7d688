package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setTable replaces a player's table cards with exactly the given ranks.
func setTable(g *Game, sessionID string, cards []Card) {
	g.call(func() {
		for _, c := range g.tableCards(sessionID) {
			g.removeCard(c)
		}
		for slot, card := range cards {
			g.cards = append(g.cards, &PositionedCard{
				Card:     card,
				Position: tablePosition(sessionID, slot),
				Facedown: true,
			})
		}
	})
}

func scores(g *Game) []PlayerScore {
	var out []PlayerScore
	g.call(func() { out = g.computeScores() })
	return out
}

func TestScoringLowestWins(t *testing.T) {
	g, _ := newTestGame(t, Options{})
	startPlay(t, g)

	setTable(g, alice, []Card{
		{Rank: RankKing, Suit: SuitSpades, Value: -1},
		{Rank: RankJoker, Value: 0},
	})
	setTable(g, bob, []Card{
		{Rank: RankKing, Suit: SuitHearts, Value: 40},
		{Rank: RankAce, Suit: SuitClubs, Value: 1},
	})

	standings := scores(g)
	require.Len(t, standings, 2)
	assert.Equal(t, "Alice", standings[0].Name)
	assert.Equal(t, -1, standings[0].Score)
	assert.Equal(t, "Bob", standings[1].Name)
	assert.Equal(t, 41, standings[1].Score)
}

func TestScoringTieKeepsJoinOrder(t *testing.T) {
	g, _ := newTestGame(t, Options{})
	startPlay(t, g)

	setTable(g, alice, []Card{{Rank: "5", Suit: SuitClubs, Value: 5}})
	setTable(g, bob, []Card{{Rank: "5", Suit: SuitHearts, Value: 5}})

	standings := scores(g)
	require.Len(t, standings, 2)
	assert.Equal(t, "Alice", standings[0].Name, "earlier joiner wins ties")
}

func TestScoringIsIdempotent(t *testing.T) {
	g, _ := newTestGame(t, Options{})
	startPlay(t, g)

	first := scores(g)
	second := scores(g)
	assert.Equal(t, first, second)
}

func TestRiskyFivesSingleFivePunishes(t *testing.T) {
	g, _ := newTestGame(t, Options{RiskyFives: true})
	startPlay(t, g)

	setTable(g, alice, []Card{
		{Rank: "5", Suit: SuitClubs, Value: 5},
		{Rank: "2", Suit: SuitHearts, Value: 2},
	})
	setTable(g, bob, []Card{{Rank: "9", Suit: SuitClubs, Value: 9}})

	standings := scores(g)
	require.Equal(t, "Bob", standings[0].Name)
	for _, s := range standings {
		if s.Name == "Alice" {
			assert.Equal(t, 52, s.Score, "a lone five scores fifty")
		}
	}
}

func TestRiskyFivesPairRewards(t *testing.T) {
	g, _ := newTestGame(t, Options{RiskyFives: true})
	startPlay(t, g)

	setTable(g, alice, []Card{
		{Rank: "5", Suit: SuitClubs, Value: 5},
		{Rank: "5", Suit: SuitHearts, Value: 5},
	})
	setTable(g, bob, []Card{{Rank: RankJoker, Value: 0}})

	standings := scores(g)
	assert.Equal(t, "Alice", standings[0].Name)
	assert.Equal(t, -25, standings[0].Score, "a pair of fives scores minus twenty five")
}

func TestRiskyFivesDisabledFivesAreOrdinary(t *testing.T) {
	g, _ := newTestGame(t, Options{})
	startPlay(t, g)

	setTable(g, alice, []Card{{Rank: "5", Suit: SuitClubs, Value: 5}})
	setTable(g, bob, []Card{{Rank: "6", Suit: SuitClubs, Value: 6}})

	standings := scores(g)
	assert.Equal(t, "Alice", standings[0].Name)
	assert.Equal(t, 5, standings[0].Score)
}
