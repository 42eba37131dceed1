// Package simulate generates synthetic parties and drives them through the
// ranking pipeline, locally or against a running service.
package simulate

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/partyrank/internal/domain/model"
)

// Constants for appeal and expected score generation.
const (
	expectedNoise = 0.2
	minExpected   = 0.05
	maxExpected   = 0.95
)

var (
	adjectives = []string{"Silent", "Crimson", "Electric", "Hidden", "Last", "Golden", "Broken", "Midnight", "Wild", "Frozen"}
	nouns      = []string{"Harbor", "Signal", "Garden", "Frontier", "Echo", "Empire", "Orchard", "Voyage", "Mirror", "Summit"}
)

// Party is a generated party with its swipe log in submission order.
type Party struct {
	ID         string            `json:"id"`
	Seed       uint64            `json:"seed"`
	Candidates []model.Candidate `json:"candidates"`
	Members    []string          `json:"members"`
	Swipes     []model.Swipe     `json:"swipes"`
}

// Generate builds a party from cfg. The same seed yields the same party.
func Generate(cfg Config) (Party, error) {
	if err := cfg.Validate(); err != nil {
		return Party{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64() | 1
	}

	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	rng := rand.New(src)

	newID := func() (string, error) {
		id, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		return id.String(), nil
	}

	partyID, err := newID()
	if err != nil {
		return Party{}, err
	}
	party := Party{ID: partyID, Seed: seed}

	appeal := make([]float64, cfg.Candidates)
	for i := 0; i < cfg.Candidates; i++ {
		id, err := newID()
		if err != nil {
			return Party{}, err
		}
		appeal[i] = rng.Float64()
		party.Candidates = append(party.Candidates, model.Candidate{
			ID:            id,
			Title:         fmt.Sprintf("%s %s #%d", adjectives[rng.IntN(len(adjectives))], nouns[rng.IntN(len(nouns))], i+1),
			ExpectedScore: clamp(appeal[i]+(rng.Float64()*2-1)*expectedNoise, minExpected, maxExpected),
		})
	}

	start := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	for m := 0; m < cfg.Members; m++ {
		memberID, err := newID()
		if err != nil {
			return Party{}, err
		}
		party.Members = append(party.Members, memberID)

		for _, i := range rng.Perm(cfg.Candidates) {
			if rng.Float64() >= cfg.Coverage {
				continue
			}
			dir := model.Reject
			if rng.Float64() < appeal[i] {
				dir = model.Accept
			}
			party.Swipes = append(party.Swipes, model.Swipe{
				MemberID:    memberID,
				CandidateID: party.Candidates[i].ID,
				Direction:   dir,
				TS:          start.Add(time.Duration(len(party.Swipes)) * time.Second),
			})
		}
	}
	return party, nil
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
