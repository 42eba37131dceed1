// Package normalize aligns member rating vectors before aggregation.
//
// Every output vector covers the same title set and lists it in the same
// order, so vectors can be merged by position. Titles are compared byte-wise,
// which keeps the order independent of locale.
package normalize

import (
	"sort"

	"github.com/okian/partyrank/internal/domain/model"
)

// Titles returns the sorted union of titles and every title present in vectors.
func Titles(vectors []model.RatingVector, titles []string) []string {
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}
	for _, v := range vectors {
		for t := range v {
			set[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Vectors completes each vector over the union of all titles, filling gaps
// with base, and sorts every vector by title. Ratings already present are
// copied unchanged.
func Vectors(vectors []model.RatingVector, titles []string, base float64) []model.OrderedVector {
	union := Titles(vectors, titles)

	out := make([]model.OrderedVector, len(vectors))
	for i, v := range vectors {
		out[i] = fill(v, union, base)
	}
	return out
}

// Pad completes a single vector over titles. Padding a vector that already
// covers titles only sorts it.
func Pad(v model.RatingVector, titles []string, base float64) model.OrderedVector {
	return fill(v, Titles([]model.RatingVector{v}, titles), base)
}

// fill expects union to be sorted and to contain every key of v.
func fill(v model.RatingVector, union []string, base float64) model.OrderedVector {
	ov := make(model.OrderedVector, len(union))
	for i, t := range union {
		r, ok := v[t]
		if !ok {
			r = base
		}
		ov[i] = model.TitledRating{Title: t, Rating: r}
	}
	return ov
}
