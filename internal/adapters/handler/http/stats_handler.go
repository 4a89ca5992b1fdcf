package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type StatsHandler struct {
	service ports.StatsService
}

func NewStatsHandler(service ports.StatsService) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

type leaderboardResponse struct {
	Period  domain.Period             `json:"period"`
	Entries []domain.LeaderboardEntry `json:"entries"`
}

func (h *StatsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid server id", http.StatusBadRequest)
		return
	}

	period, limit := leaderboardQuery(r)
	entries, err := h.service.TopVoters(r.Context(), serverID, period, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Period: period, Entries: entries})
}

// leaderboardQuery reads ?period= and ?limit= (or ?per_page=). A missing,
// unparsable or non-positive limit is passed on as zero, which the service
// replaces with its default.
func leaderboardQuery(r *http.Request) (domain.Period, int) {
	q := r.URL.Query()
	period := domain.ParsePeriod(q.Get("period"))

	raw := q.Get("limit")
	if raw == "" {
		raw = q.Get("per_page")
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		limit = 0
	}
	return period, limit
}
