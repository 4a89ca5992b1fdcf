package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type VoteHandler struct {
	service ports.VoteService
}

func NewVoteHandler(service ports.VoteService) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

type castVoteRequest struct {
	MinecraftUsername string     `json:"minecraft_username"`
	MinecraftUUID     *uuid.UUID `json:"minecraft_uuid,omitempty"`
}

type eligibilityResponse struct {
	CanVote                  bool   `json:"can_vote"`
	CooldownRemainingSeconds *int64 `json:"cooldown_remaining_seconds"`
}

type streakResponse struct {
	MinecraftUsername string `json:"minecraft_username"`
	Streak            int    `json:"streak"`
}

func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid server id", http.StatusBadRequest)
		return
	}

	user, ok := r.Context().Value(UserKey).(domain.User)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := ports.CastVoteInput{
		ServerID:          serverID,
		Voter:             user,
		MinecraftUsername: req.MinecraftUsername,
		MinecraftUUID:     req.MinecraftUUID,
		Metadata: domain.RequestMetadata{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		},
	}

	vote, err := h.service.Cast(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

func (h *VoteHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid server id", http.StatusBadRequest)
		return
	}

	user, ok := r.Context().Value(UserKey).(domain.User)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	canVote, err := h.service.CanVote(r.Context(), serverID, user)
	if err != nil {
		writeError(w, err)
		return
	}
	remaining, err := h.service.CooldownRemaining(r.Context(), serverID, user)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := eligibilityResponse{CanVote: canVote}
	if remaining != nil {
		seconds := int64(remaining.Seconds())
		resp.CooldownRemainingSeconds = &seconds
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *VoteHandler) Streak(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid server id", http.StatusBadRequest)
		return
	}
	username := chi.URLParam(r, "username")

	streak, err := h.service.CurrentStreak(r.Context(), serverID, username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse{MinecraftUsername: username, Streak: streak})
}
