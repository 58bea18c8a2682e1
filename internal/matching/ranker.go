package matching

import (
	"sort"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
)

const (
	// SearchLimit is the number of results shown by FAQ search.
	SearchLimit = 10
	// MatchLimit is the number of results used to auto-answer a chat query.
	MatchLimit = 1
)

// Rank orders candidates: entries tagged with one of the user's models first,
// then by score descending, then by ID so the order is total. A limit <= 0
// keeps every candidate. The input slice is left untouched.
func Rank(candidates []faq.ScoredCandidate, userModels []faq.ScooterModel, limit int) []faq.ScoredCandidate {
	ranked := make([]faq.ScoredCandidate, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].ModelAffinity = ranked[i].Entry.MatchesModels(userModels)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ModelAffinity != b.ModelAffinity {
			return a.ModelAffinity
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Entry.ID < b.Entry.ID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
