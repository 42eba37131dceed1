package aggregate

import (
	"errors"
	"fmt"

	"github.com/okian/partyrank/internal/domain/model"
)

// Sentinel kinds for aggregation errors.
var (
	ErrMisaligned    = fmt.Errorf("%w: member vectors do not share one ordered title set", model.ErrInvalidInput)
	ErrNonFinite     = fmt.Errorf("aggregate: %w", model.ErrNonFinite)
	ErrUnknownPolicy = errors.New("unknown aggregation policy")
)
