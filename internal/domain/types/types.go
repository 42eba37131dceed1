// Package types contains common types used across the application
package types

// Entry represents one row of a party's consensus ranking
type Entry struct {
	Rank        int     `json:"rank"`
	CandidateID string  `json:"candidate_id,omitempty"`
	Title       string  `json:"title"`
	Rating      float64 `json:"rating"`
}

// SwipeResult reports what happened to a submitted swipe.
type SwipeResult struct {
	Duplicate bool `json:"duplicate"`
}
