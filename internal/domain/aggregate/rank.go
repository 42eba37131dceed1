package aggregate

import (
	"sort"

	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/internal/domain/types"
)

// Less reports whether (aRating, aTitle) ranks before (bRating, bTitle):
// higher rating first, then title ascending (byte-wise).
func Less(aRating float64, aTitle string, bRating float64, bTitle string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aTitle < bTitle
}

// Rank orders a consensus into ranking entries. ids maps title back to
// candidate id and may be nil.
func Rank(c model.Consensus, ids map[string]string) []types.Entry {
	entries := make([]types.Entry, 0, len(c))
	for title, rating := range c {
		entries = append(entries, types.Entry{
			CandidateID: ids[title],
			Title:       title,
			Rating:      rating,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return Less(entries[i].Rating, entries[i].Title, entries[j].Rating, entries[j].Title)
	})
	AssignRanks(entries)
	return entries
}

// AssignRanks numbers already ordered entries. Entries with equal ratings
// share a rank; the next distinct rating takes the next consecutive rank.
func AssignRanks(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Rating != entries[i-1].Rating {
			rank++
		}
		entries[i].Rank = rank
	}
}
