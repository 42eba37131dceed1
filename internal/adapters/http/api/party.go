package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/partyrank/internal/adapters/repository"
	"github.com/okian/partyrank/internal/domain/model"
)

// PartyDependencies defines the party lifecycle operations.
type PartyDependencies interface {
	RegisterCandidates(ctx context.Context, partyID string, candidates []model.Candidate) error
	Complete(ctx context.Context, partyID string) (model.RankJob, error)
	Party(ctx context.Context, partyID string) (repository.Party, error)
	DeleteParty(ctx context.Context, partyID string) error
}

// PartyHandler handles party lifecycle requests.
type PartyHandler struct {
	deps PartyDependencies
}

// NewPartyHandler creates a new party handler.
func NewPartyHandler(deps PartyDependencies) *PartyHandler {
	return &PartyHandler{deps: deps}
}

// candidatesRequest is the body of PUT /parties/{id}/candidates.
type candidatesRequest struct {
	Candidates []model.Candidate `json:"candidates"`
}

type candidatesResponse struct {
	PartyID    string `json:"party_id"`
	Candidates int    `json:"candidates"`
}

type completeResponse struct {
	JobID      string    `json:"job_id"`
	PartyID    string    `json:"party_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// HandlePutCandidates handles PUT /parties/{id}/candidates requests.
func (h *PartyHandler) HandlePutCandidates(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_candidates"
	partyID := r.PathValue("id")

	var req candidatesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.RegisterCandidates(r.Context(), partyID, req.Candidates); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, candidatesResponse{PartyID: partyID, Candidates: len(req.Candidates)})
}

// HandleComplete handles POST /parties/{id}/complete requests.
func (h *PartyHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	const op = "api.complete_party"
	job, err := h.deps.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, completeResponse{
		JobID:      job.JobID,
		PartyID:    job.PartyID,
		EnqueuedAt: job.EnqueuedAt,
	})
}

// HandleGetParty handles GET /parties/{id} requests.
func (h *PartyHandler) HandleGetParty(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_party"
	party, err := h.deps.Party(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

// HandleDeleteParty handles DELETE /parties/{id} requests.
func (h *PartyHandler) HandleDeleteParty(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_party"
	if err := h.deps.DeleteParty(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
