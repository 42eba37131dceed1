// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/partyrank/internal/adapters/mq/queue"
	"github.com/okian/partyrank/internal/adapters/repository"
	"github.com/okian/partyrank/internal/domain/consensus"
	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/internal/domain/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// DefaultMaxRankingLimit is used when NewServer is given a non-positive limit.
const DefaultMaxRankingLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PartyDependencies
	SwipeDependencies
	RankingDependencies
	StatelessRanker
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	partyHandler   *PartyHandler
	swipeHandler   *SwipeHandler
	rankingHandler *RankingHandler
	rankHandler    *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxRankingLimit int) *Server {
	if maxRankingLimit < 1 {
		maxRankingLimit = DefaultMaxRankingLimit
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		partyHandler:   NewPartyHandler(deps),
		swipeHandler:   NewSwipeHandler(deps),
		rankingHandler: NewRankingHandler(deps, maxRankingLimit),
		rankHandler:    NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /rank", MetricsMiddleware(s.rankHandler.HandlePostRank, "rank"))

	mux.HandleFunc("GET /parties/{id}", MetricsMiddleware(s.partyHandler.HandleGetParty, "party"))
	mux.HandleFunc("DELETE /parties/{id}", MetricsMiddleware(s.partyHandler.HandleDeleteParty, "party"))
	mux.HandleFunc("PUT /parties/{id}/candidates", MetricsMiddleware(s.partyHandler.HandlePutCandidates, "candidates"))
	mux.HandleFunc("POST /parties/{id}/complete", MetricsMiddleware(s.partyHandler.HandleComplete, "complete"))
	mux.HandleFunc("POST /parties/{id}/swipes", MetricsMiddleware(s.swipeHandler.HandlePostSwipe, "swipes"))
	mux.HandleFunc("GET /parties/{id}/ranking", MetricsMiddleware(s.rankingHandler.HandleGetRanking, "ranking"))
	mux.HandleFunc("GET /parties/{id}/rank/{title}", MetricsMiddleware(s.rankHandler.HandleGetRank, "party_rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps an error from the service layer to a status code.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	err = fmt.Errorf("%s: %w", op, err)
	switch {
	case model.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotRanked):
		writeError(w, http.StatusConflict, "not_ranked", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", fmt.Errorf("%w: %w", ErrBackpressure, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// StatelessRanker ranks a candidate set from swipes without storing anything.
type StatelessRanker interface {
	RankStateless(ctx context.Context, candidates []model.Candidate, swipes []model.Swipe) (consensus.Result, error)
}
