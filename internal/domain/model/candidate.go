// Package model contains domain models passed between layers.
package model

import "time"

// Candidate is a movie eligible for ranking within one party.
// It is immutable for the duration of a scoring run.
type Candidate struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	Title         string   `json:"title" yaml:"title" validate:"required"`
	Genres        []string `json:"genres,omitempty" yaml:"genres,omitempty"`
	ExpectedScore float64  `json:"expected_score" yaml:"expected_score" validate:"gte=0,lte=1"` // prior acceptance probability
}

// Direction is a member's binary decision on a candidate.
type Direction string

// Supported swipe directions.
const (
	Accept Direction = "accept"
	Reject Direction = "reject"
)

// Outcome returns the actual score of the decision: 1 for accept, 0 for reject.
// ok is false for an unknown direction.
func (d Direction) Outcome() (outcome float64, ok bool) {
	switch d {
	case Accept:
		return 1, true
	case Reject:
		return 0, true
	default:
		return 0, false
	}
}

// Swipe is one member's decision on one candidate. Swipes are ordered;
// callers pass them in the order they were recorded.
type Swipe struct {
	MemberID    string    `json:"member_id" yaml:"member_id" validate:"required"`
	CandidateID string    `json:"candidate_id" yaml:"candidate_id" validate:"required"`
	Direction   Direction `json:"direction" yaml:"direction" validate:"required,oneof=accept reject"`
	TS          time.Time `json:"ts,omitempty" yaml:"ts,omitempty"`
}

// RankJob asks the service to recompute a party's consensus.
type RankJob struct {
	JobID      string
	PartyID    string
	EnqueuedAt time.Time
}
