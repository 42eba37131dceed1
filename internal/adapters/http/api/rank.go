package api

import (
	"net/http"
	"strings"

	"github.com/okian/partyrank/internal/domain/model"
)

// RankDependencies combines single-title lookups with stateless ranking.
type RankDependencies interface {
	RankingDependencies
	StatelessRanker
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// rankRequest is the body of POST /rank.
type rankRequest struct {
	Candidates []model.Candidate `json:"candidates"`
	Swipes     []model.Swipe     `json:"swipes"`
}

type rankStats struct {
	Members       int `json:"members"`
	Candidates    int `json:"candidates"`
	SwipesApplied int `json:"swipes_applied"`
	SwipesIgnored int `json:"swipes_ignored"`
}

type rankResponse struct {
	Ranking   []Entry            `json:"ranking"`
	Consensus map[string]float64 `json:"consensus"`
	Stats     rankStats          `json:"stats"`
}

// HandlePostRank handles POST /rank requests.
func (h *RankHandler) HandlePostRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rank"
	var req rankRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	res, err := h.deps.RankStateless(r.Context(), req.Candidates, req.Swipes)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	ranking := res.Ranking
	if ranking == nil {
		ranking = []Entry{}
	}
	ratings := map[string]float64(res.Consensus)
	if ratings == nil {
		ratings = map[string]float64{}
	}
	writeJSON(w, http.StatusOK, rankResponse{
		Ranking:   ranking,
		Consensus: ratings,
		Stats: rankStats{
			Members:       res.Stats.Members,
			Candidates:    res.Stats.Candidates,
			SwipesApplied: res.Stats.SwipesApplied,
			SwipesIgnored: res.Stats.SwipesIgnored,
		},
	})
}

// HandleGetRank handles GET /parties/{id}/rank/{title} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	title := r.PathValue("title")
	if strings.TrimSpace(title) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	entry, err := h.deps.Rank(r.Context(), r.PathValue("id"), title)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
