package search

import (
	"strings"

	"github.com/dmbp/licitaflix/internal/models"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// MinScore is the acceptance threshold on the 0-100 fuzzy scale.
const MinScore = 60

// Candidate is an accepted match: the best-scoring term for one bid, with the
// score normalized to [0,1].
type Candidate struct {
	Bid   models.Bid
	Term  models.SearchTerm
	Score float64
}

// MatchBids scores every bid against every active term and keeps the single
// best term per bid. Per term the score is the maximum of the partial-ratio
// and token-set-ratio similarities between the case-folded term and the bid
// description; a bid is accepted only when its best score reaches minScore.
//
// This is a greedy best-of-N per bid, not a global assignment: a term wins a
// bid even when another term would serve other bids better elsewhere.
func MatchBids(bids []models.Bid, terms []models.SearchTerm, minScore int) []Candidate {
	active := make([]models.SearchTerm, 0, len(terms))
	for _, t := range terms {
		if t.Active && strings.TrimSpace(t.Term) != "" {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil
	}

	var out []Candidate
	for _, bid := range bids {
		desc := strings.ToLower(strings.TrimSpace(bid.Description))
		if desc == "" {
			continue
		}

		best := 0
		var bestTerm models.SearchTerm
		for _, t := range active {
			score := termScore(strings.ToLower(strings.TrimSpace(t.Term)), desc)
			// Strict > keeps the first-encountered term on ties.
			if score > best {
				best = score
				bestTerm = t
			}
		}

		if best >= minScore {
			out = append(out, Candidate{
				Bid:   bid,
				Term:  bestTerm,
				Score: float64(best) / 100.0,
			})
		}
	}

	return out
}

// termScore combines a partial-substring similarity with a token-set
// similarity so both "asfalto" inside a long description and reordered
// multi-word terms score well.
func termScore(term, description string) int {
	score := fuzzy.PartialRatio(term, description)
	if ts := fuzzy.TokenSetRatio(term, description); ts > score {
		score = ts
	}
	return score
}
