package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const (
	pendingVotesLimit = 100
	serviceName       = "MC Votes"
)

// AgentHandler serves the in-game plugin. Responses keep the flat shapes the
// plugin already parses.
type AgentHandler struct {
	votes ports.VoteService
	stats ports.StatsService
}

func NewAgentHandler(votes ports.VoteService, stats ports.StatsService) *AgentHandler {
	return &AgentHandler{
		votes: votes,
		stats: stats,
	}
}

type pendingVote struct {
	ID         uuid.UUID  `json:"id"`
	PlayerUUID *uuid.UUID `json:"player_uuid"`
	PlayerName string     `json:"player_name"`
	Service    string     `json:"service_name"`
	Timestamp  int64      `json:"timestamp"`
	Claimed    bool       `json:"claimed"`
	Rewards    []string   `json:"rewards"`
}

type claimedReward struct {
	ID   uuid.UUID         `json:"id"`
	Name string            `json:"name"`
	Type domain.RewardType `json:"type"`
}

type claimData struct {
	VoteID            uuid.UUID       `json:"vote_id"`
	MinecraftUsername string          `json:"minecraft_username"`
	Rewards           []claimedReward `json:"rewards"`
	Commands          []string        `json:"commands"`
}

type statsRequest struct {
	CurrentPlayers *int `json:"current_players"`
	PlayersOnline  *int `json:"players_online"`
	MaxPlayers     *int `json:"max_players"`
}

type agentLeaderboardEntry struct {
	Position   int        `json:"position"`
	PlayerUUID *uuid.UUID `json:"player_uuid"`
	PlayerName string     `json:"player_name"`
	Votes      int64      `json:"votes"`
	LastVote   int64      `json:"last_vote"`
}

type summaryServer struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	IsOnline bool      `json:"is_online"`
}

type summaryVotes struct {
	Today         int64 `json:"today"`
	ThisWeek      int64 `json:"this_week"`
	ThisMonth     int64 `json:"this_month"`
	Total         int64 `json:"total"`
	PendingClaims int64 `json:"pending_claims"`
}

type summaryData struct {
	Server summaryServer `json:"server"`
	Votes  summaryVotes  `json:"votes"`
}

// authorizedServer resolves {id} and checks it against the server the token
// belongs to.
func authorizedServer(w http.ResponseWriter, r *http.Request) (*domain.Server, bool) {
	server, ok := r.Context().Value(ServerKey).(*domain.Server)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, agentResponse{Success: false, Message: "Missing server context"})
		return nil, false
	}

	serverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, agentResponse{Success: false, Message: "invalid server id"})
		return nil, false
	}
	if serverID != server.ID {
		writeJSON(w, http.StatusForbidden, agentResponse{Success: false, Message: "Unauthorized"})
		return nil, false
	}
	return server, true
}

func (h *AgentHandler) Pending(w http.ResponseWriter, r *http.Request) {
	server, ok := authorizedServer(w, r)
	if !ok {
		return
	}

	var player *uuid.UUID
	if raw := r.URL.Query().Get("player"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, agentResponse{Success: false, Message: "invalid player uuid"})
			return
		}
		player = &id
	}

	votes, err := h.votes.Pending(r.Context(), server.ID, player, pendingVotesLimit)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingVotes(votes))
}

func (h *AgentHandler) BulkPending(w http.ResponseWriter, r *http.Request) {
	server, ok := authorizedServer(w, r)
	if !ok {
		return
	}

	votes, err := h.votes.Pending(r.Context(), server.ID, nil, 0)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingVotes(votes))
}

func (h *AgentHandler) Claim(w http.ResponseWriter, r *http.Request) {
	server, ok := r.Context().Value(ServerKey).(*domain.Server)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, agentResponse{Success: false, Message: "Missing server context"})
		return
	}

	voteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, agentResponse{Success: false, Message: "invalid vote id"})
		return
	}

	result, err := h.votes.Claim(r.Context(), server.ID, voteID)
	if err != nil {
		writeAgentError(w, err)
		return
	}

	rewards := make([]claimedReward, 0, len(result.Rewards))
	for _, reward := range result.Rewards {
		rewards = append(rewards, claimedReward{ID: reward.ID, Name: reward.Name, Type: reward.Type})
	}
	writeJSON(w, http.StatusOK, agentResponse{
		Success: true,
		Message: "Vote claimed successfully",
		Data: claimData{
			VoteID:            result.Vote.ID,
			MinecraftUsername: result.Vote.MinecraftUsername,
			Rewards:           rewards,
			Commands:          result.Commands,
		},
	})
}

func (h *AgentHandler) RecordStats(w http.ResponseWriter, r *http.Request) {
	server, ok := authorizedServer(w, r)
	if !ok {
		return
	}

	var req statsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, agentResponse{Success: false, Message: "invalid request body"})
		return
	}

	hb := domain.Heartbeat{CurrentPlayers: server.CurrentPlayers, MaxPlayers: server.MaxPlayers}
	switch {
	case req.CurrentPlayers != nil:
		hb.CurrentPlayers = *req.CurrentPlayers
	case req.PlayersOnline != nil:
		hb.CurrentPlayers = *req.PlayersOnline
	}
	if req.MaxPlayers != nil {
		hb.MaxPlayers = *req.MaxPlayers
	}
	if hb.CurrentPlayers < 0 || hb.MaxPlayers < 0 {
		writeJSON(w, http.StatusUnprocessableEntity, agentResponse{Success: false, Message: "player counts must not be negative"})
		return
	}

	if err := h.stats.RecordHeartbeat(r.Context(), server.ID, hb); err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agentResponse{
		Success: true,
		Message: "Server stats updated",
		Data:    map[string]any{"server_id": server.ID, "is_online": true},
	})
}

func (h *AgentHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	server, ok := authorizedServer(w, r)
	if !ok {
		return
	}

	period, limit := leaderboardQuery(r)
	entries, err := h.stats.TopVoters(r.Context(), server.ID, period, limit)
	if err != nil {
		writeAgentError(w, err)
		return
	}

	out := make([]agentLeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, agentLeaderboardEntry{
			Position:   e.Position,
			PlayerUUID: e.MinecraftUUID,
			PlayerName: e.MinecraftUsername,
			Votes:      e.VoteCount,
			LastVote:   e.LastVoteAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AgentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	server, ok := authorizedServer(w, r)
	if !ok {
		return
	}

	summary, err := h.stats.Summary(r.Context(), server.ID)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agentResponse{
		Success: true,
		Data: summaryData{
			Server: summaryServer{
				ID:       summary.ServerID,
				Name:     summary.Name,
				Slug:     summary.Slug,
				IsOnline: summary.IsOnline,
			},
			Votes: summaryVotes{
				Today:         summary.VotesToday,
				ThisWeek:      summary.VotesWeek,
				ThisMonth:     summary.VotesMonth,
				Total:         summary.VotesTotal,
				PendingClaims: summary.PendingClaims,
			},
		},
	})
}

func toPendingVotes(votes []*domain.Vote) []pendingVote {
	out := make([]pendingVote, 0, len(votes))
	for _, v := range votes {
		out = append(out, pendingVote{
			ID:         v.ID,
			PlayerUUID: v.MinecraftUUID,
			PlayerName: v.MinecraftUsername,
			Service:    serviceName,
			Timestamp:  v.CreatedAt.UnixMilli(),
			Claimed:    v.Claimed,
			Rewards:    []string{},
		})
	}
	return out
}
