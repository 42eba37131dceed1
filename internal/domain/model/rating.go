package model

// RatingVector maps candidate title to one member's rating.
type RatingVector map[string]float64

// Clone returns an independent copy of v.
func (v RatingVector) Clone() RatingVector {
	out := make(RatingVector, len(v))
	for title, rating := range v {
		out[title] = rating
	}
	return out
}

// TitledRating is a single (title, rating) pair.
type TitledRating struct {
	Title  string  `json:"title"`
	Rating float64 `json:"rating"`
}

// OrderedVector is a rating vector sorted by title. Normalized vectors of the
// same party share the exact same title sequence, so entries align by index.
type OrderedVector []TitledRating

// Titles returns the title sequence of v.
func (v OrderedVector) Titles() []string {
	out := make([]string, len(v))
	for i, tr := range v {
		out[i] = tr.Title
	}
	return out
}

// Map converts v back into a RatingVector.
func (v OrderedVector) Map() RatingVector {
	out := make(RatingVector, len(v))
	for _, tr := range v {
		out[tr.Title] = tr.Rating
	}
	return out
}

// Consensus maps candidate title to the party's final rating.
type Consensus map[string]float64
