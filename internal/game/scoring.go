package game

import "sort"

// PlayerScore is one player's final tally.
type PlayerScore struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
}

// computeScores totals each player's remaining table cards and returns the
// standings in ascending score order. Ties keep join order, so the earlier
// joiner wins a tied hand.
//
// With the riskyFives option, fives stop being ordinary number cards:
// holding exactly one costs 50, holding exactly two scores minus 25.
func (g *Game) computeScores() []PlayerScore {
	scores := make([]PlayerScore, 0, len(g.players))
	for _, id := range g.joinOrder {
		player, ok := g.players[id]
		if !ok {
			continue
		}

		total := 0
		fives := 0
		for _, c := range g.tableCards(id) {
			if g.options.RiskyFives && c.Value == 5 {
				fives++
				continue
			}
			total += c.Value
		}
		switch fives {
		case 0:
		case 1:
			total += 50
		case 2:
			total -= 25
		default:
			total += fives * 5
		}

		scores = append(scores, PlayerScore{SessionID: id, Name: player.Name, Score: total})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score < scores[j].Score
	})
	return scores
}
