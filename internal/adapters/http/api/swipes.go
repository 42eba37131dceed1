package api

import (
	"context"
	"net/http"

	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/internal/domain/types"
)

// SwipeDependencies defines the interface for swipe ingestion.
type SwipeDependencies interface {
	RecordSwipe(ctx context.Context, partyID string, sw model.Swipe) (types.SwipeResult, error)
}

// SwipeHandler handles swipe requests.
type SwipeHandler struct {
	deps SwipeDependencies
}

// NewSwipeHandler creates a new swipe handler.
func NewSwipeHandler(deps SwipeDependencies) *SwipeHandler {
	return &SwipeHandler{deps: deps}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostSwipe handles POST /parties/{id}/swipes requests.
// A repeated (member, candidate) pair is acknowledged as a duplicate.
func (h *SwipeHandler) HandlePostSwipe(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_swipe"
	var sw model.Swipe
	if err := decodeJSON(w, r, &sw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := h.deps.RecordSwipe(r.Context(), r.PathValue("id"), sw)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
