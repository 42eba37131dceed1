package model

import (
	"errors"
	"math"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateCandidates checks every candidate's fields and that titles are
// unique within the set. Title collisions are reported with ErrDuplicateTitle
// since titles are the join key across member vectors.
func ValidateCandidates(candidates []Candidate) error {
	verr := NewValidationError("candidates", nil)
	seenIDs := make(map[string]struct{}, len(candidates))
	seenTitles := make(map[string]string, len(candidates))

	for i := range candidates {
		c := &candidates[i]
		if math.IsNaN(c.ExpectedScore) || math.IsInf(c.ExpectedScore, 0) {
			verr.AddError("candidate %q: expected_score is not finite", c.ID)
			continue
		}
		if err := getValidator().Struct(c); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				for _, fe := range fieldErrs {
					verr.AddError("candidate %d (%q): field %s failed %s", i, c.ID, fe.Field(), fe.Tag())
				}
			} else {
				verr.AddError("candidate %d: %v", i, err)
			}
			continue
		}
		if _, dup := seenIDs[c.ID]; dup {
			verr.AddError("candidate id %q appears more than once", c.ID)
		}
		seenIDs[c.ID] = struct{}{}
		if other, dup := seenTitles[c.Title]; dup {
			verr.Kind = ErrDuplicateTitle
			verr.AddError("title %q shared by candidates %q and %q", c.Title, other, c.ID)
		}
		seenTitles[c.Title] = c.ID
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// ValidateSwipe checks the swipe's required fields and direction.
func ValidateSwipe(s *Swipe) error {
	if err := getValidator().Struct(s); err != nil {
		verr := NewValidationError("swipe", nil)
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.AddError("field %s failed %s", fe.Field(), fe.Tag())
			}
		} else {
			verr.AddError("%v", err)
		}
		return verr
	}
	return nil
}
