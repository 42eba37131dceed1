package simulate

import (
	"fmt"
	"math"

	"github.com/okian/partyrank/internal/domain/types"
)

// ratingTolerance absorbs float formatting differences across JSON.
const ratingTolerance = 1e-6

// Verify checks that got is the prefix of expected: same titles in the same
// order with the same ranks and ratings.
func Verify(expected, got []types.Entry) error {
	want := min(len(expected), len(got))
	if len(got) > len(expected) || (len(got) < len(expected) && len(got) == 0) {
		return fmt.Errorf("%w: got %d entries, expected %d", ErrMismatch, len(got), len(expected))
	}
	for i := 0; i < want; i++ {
		e, g := expected[i], got[i]
		switch {
		case e.Title != g.Title:
			return fmt.Errorf("%w: position %d title %q, expected %q", ErrMismatch, i, g.Title, e.Title)
		case e.Rank != g.Rank:
			return fmt.Errorf("%w: %q rank %d, expected %d", ErrMismatch, g.Title, g.Rank, e.Rank)
		case math.Abs(e.Rating-g.Rating) > ratingTolerance:
			return fmt.Errorf("%w: %q rating %v, expected %v", ErrMismatch, g.Title, g.Rating, e.Rating)
		}
	}
	return nil
}
