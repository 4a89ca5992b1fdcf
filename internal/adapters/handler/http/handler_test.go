package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const testSecret = "test-secret"

type stubVoteService struct {
	castInput  ports.CastVoteInput
	castErr    error
	canVote    bool
	remaining  *time.Duration
	streak     int
	pending    []*domain.Vote
	pendingFor *uuid.UUID
	limit      int
	claim      *domain.ClaimResult
	claimErr   error
}

func (s *stubVoteService) Cast(ctx context.Context, input ports.CastVoteInput) (*domain.Vote, error) {
	s.castInput = input
	if s.castErr != nil {
		return nil, s.castErr
	}
	return &domain.Vote{ID: uuid.New(), ServerID: input.ServerID, MinecraftUsername: input.MinecraftUsername, Streak: 1, EarnedRewards: []uuid.UUID{}}, nil
}

func (s *stubVoteService) CreateVote(ctx context.Context, server *domain.Server, voter domain.User, username string, minecraftUUID *uuid.UUID, meta domain.RequestMetadata) (*domain.Vote, error) {
	return nil, errors.New("not implemented")
}

func (s *stubVoteService) CanVote(ctx context.Context, serverID uuid.UUID, voter domain.User) (bool, error) {
	return s.canVote, nil
}

func (s *stubVoteService) CooldownRemaining(ctx context.Context, serverID uuid.UUID, voter domain.User) (*time.Duration, error) {
	return s.remaining, nil
}

func (s *stubVoteService) CurrentStreak(ctx context.Context, serverID uuid.UUID, username string) (int, error) {
	if err := domain.ValidateMinecraftUsername(username); err != nil {
		return 0, err
	}
	return s.streak, nil
}

func (s *stubVoteService) Pending(ctx context.Context, serverID uuid.UUID, playerUUID *uuid.UUID, limit int) ([]*domain.Vote, error) {
	s.pendingFor = playerUUID
	s.limit = limit
	return s.pending, nil
}

func (s *stubVoteService) Claim(ctx context.Context, serverID, voteID uuid.UUID) (*domain.ClaimResult, error) {
	return s.claim, s.claimErr
}

type stubStatsService struct {
	period    domain.Period
	limit     int
	heartbeat *domain.Heartbeat
	entries   []domain.LeaderboardEntry
	topErr    error
}

func (s *stubStatsService) TopVoters(ctx context.Context, serverID uuid.UUID, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	s.period = period
	s.limit = limit
	return s.entries, s.topErr
}

func (s *stubStatsService) Recalculate(ctx context.Context, serverID uuid.UUID) error {
	return nil
}

func (s *stubStatsService) RecalculateAll(ctx context.Context) error {
	return nil
}

func (s *stubStatsService) MarkOffline(ctx context.Context, silence time.Duration) (int64, error) {
	return 0, nil
}

func (s *stubStatsService) RecordHeartbeat(ctx context.Context, serverID uuid.UUID, hb domain.Heartbeat) error {
	s.heartbeat = &hb
	return nil
}

func (s *stubStatsService) Summary(ctx context.Context, serverID uuid.UUID) (*domain.ServerSummary, error) {
	return &domain.ServerSummary{ServerID: serverID, VotesToday: 2, VotesTotal: 9}, nil
}

type stubAgents struct {
	servers map[string]*domain.Server
	err     error
}

func (a *stubAgents) Authenticate(ctx context.Context, bearerToken, remoteIP string) (*domain.Server, error) {
	if a.err != nil {
		return nil, a.err
	}
	server, ok := a.servers[bearerToken]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return server, nil
}

type testRouter struct {
	handler http.Handler
	votes   *stubVoteService
	stats   *stubStatsService
	agents  *stubAgents
	server  *domain.Server
}

func newTestRouter() *testRouter {
	server := &domain.Server{ID: uuid.New(), Name: "Kaizen", CurrentPlayers: 4, MaxPlayers: 20}
	tr := &testRouter{
		votes:  &stubVoteService{},
		stats:  &stubStatsService{},
		agents: &stubAgents{servers: map[string]*domain.Server{"agent-token": server}},
		server: server,
	}
	tr.handler = NewHandler(
		NewVoteHandler(tr.votes),
		NewStatsHandler(tr.stats),
		NewAgentHandler(tr.votes, tr.stats),
		RouterConfig{JWTSecret: testSecret, AllowedOrigins: []string{"https://mcvotes.example"}, Agents: tr.agents},
	)
	return tr
}

func (tr *testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, userID uuid.UUID, admin bool) string {
	return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub":   userID.String(),
		"admin": admin,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func TestCastVote_Authentication(t *testing.T) {
	userID := uuid.New()
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": userID.String()})
	badSubject := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "steve"})

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized},
		{"wrong key", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+wrongKey) }, http.StatusUnauthorized},
		{"subject not a uuid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+badSubject) }, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userToken(t, userID, false)) }, http.StatusCreated},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "access_token", Value: userToken(t, userID, false)})
		}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter()
			req := httptest.NewRequest("POST", "/api/servers/"+tr.server.ID.String()+"/votes", strings.NewReader(`{"minecraft_username":"Steve"}`))
			tt.setup(req)

			rec := tr.do(req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCastVote_PassesVoterAndMetadata(t *testing.T) {
	tr := newTestRouter()
	userID := uuid.New()
	playerUUID := uuid.New()

	body := `{"minecraft_username":"Steve","minecraft_uuid":"` + playerUUID.String() + `"}`
	req := httptest.NewRequest("POST", "/api/servers/"+tr.server.ID.String()+"/votes", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+userToken(t, userID, true))
	req.Header.Set("User-Agent", "curl/8.0")
	req.RemoteAddr = "203.0.113.9:51234"

	rec := tr.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)

	input := tr.votes.castInput
	assert.Equal(t, tr.server.ID, input.ServerID)
	assert.Equal(t, domain.User{ID: userID, IsAdmin: true}, input.Voter)
	assert.Equal(t, "Steve", input.MinecraftUsername)
	assert.Equal(t, &playerUUID, input.MinecraftUUID)
	assert.Equal(t, "203.0.113.9", input.Metadata.IPAddress)
	assert.Equal(t, "curl/8.0", input.Metadata.UserAgent)
}

func TestCastVote_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidUsername, http.StatusBadRequest},
		{domain.ErrServerNotEligible, http.StatusForbidden},
		{domain.ErrServerNotFound, http.StatusNotFound},
		{domain.ErrCooldownActive, http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			tr := newTestRouter()
			tr.votes.castErr = tt.err

			req := httptest.NewRequest("POST", "/api/servers/"+tr.server.ID.String()+"/votes", strings.NewReader(`{"minecraft_username":"Steve"}`))
			req.Header.Set("Authorization", "Bearer "+userToken(t, uuid.New(), false))

			rec := tr.do(req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "connection refused")
			}
		})
	}
}

func TestCastVote_BadRequests(t *testing.T) {
	tr := newTestRouter()
	token := userToken(t, uuid.New(), false)

	req := httptest.NewRequest("POST", "/api/servers/not-a-uuid/votes", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, tr.do(req).Code)

	req = httptest.NewRequest("POST", "/api/servers/"+tr.server.ID.String()+"/votes", strings.NewReader(`{`))
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, tr.do(req).Code)
}

func TestEligibility(t *testing.T) {
	tr := newTestRouter()
	remaining := 90*time.Minute + 500*time.Millisecond
	tr.votes.remaining = &remaining

	req := httptest.NewRequest("GET", "/api/servers/"+tr.server.ID.String()+"/votes/eligibility", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, uuid.New(), false))

	rec := tr.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"can_vote":false,"cooldown_remaining_seconds":5400}`, rec.Body.String())

	tr.votes.canVote = true
	tr.votes.remaining = nil
	rec = tr.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"can_vote":true,"cooldown_remaining_seconds":null}`, rec.Body.String())
}

func TestStreak(t *testing.T) {
	tr := newTestRouter()
	tr.votes.streak = 5

	rec := tr.do(httptest.NewRequest("GET", "/api/servers/"+tr.server.ID.String()+"/streaks/Steve", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"minecraft_username":"Steve","streak":5}`, rec.Body.String())

	rec = tr.do(httptest.NewRequest("GET", "/api/servers/"+tr.server.ID.String()+"/streaks/x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardQuery(t *testing.T) {
	tests := []struct {
		query  string
		status int
		period domain.Period
		limit  int
	}{
		{"", http.StatusOK, domain.PeriodMonthly, 0},
		{"?period=weekly&limit=5", http.StatusOK, domain.PeriodWeekly, 5},
		{"?period=all&per_page=25", http.StatusOK, domain.PeriodAll, 25},
		{"?limit=abc", http.StatusOK, domain.PeriodMonthly, 0},
		{"?limit=-5", http.StatusOK, domain.PeriodMonthly, 0},
		{"?limit=500", http.StatusOK, domain.PeriodMonthly, 500},
		{"?period=hourly", http.StatusOK, domain.PeriodAll, 0},
		{"?period=lifetime&limit=3", http.StatusOK, domain.PeriodAll, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			tr := newTestRouter()
			rec := tr.do(httptest.NewRequest("GET", "/api/servers/"+tr.server.ID.String()+"/leaderboard"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.period, tr.stats.period)
				assert.Equal(t, tt.limit, tr.stats.limit)
			}
		})
	}
}

func TestLeaderboard_UnknownServer(t *testing.T) {
	tr := newTestRouter()
	tr.stats.topErr = domain.ErrServerNotFound

	rec := tr.do(httptest.NewRequest("GET", "/api/servers/"+uuid.New().String()+"/leaderboard", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func agentRequest(method, path, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer agent-token")
	return req
}

func TestAgentMiddleware(t *testing.T) {
	tr := newTestRouter()
	path := "/api/v1/servers/" + tr.server.ID.String() + "/summary"

	rec := tr.do(httptest.NewRequest("GET", path, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Missing API token"}`, rec.Body.String())

	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, tr.do(req).Code)

	tr.agents.err = domain.ErrForbidden
	assert.Equal(t, http.StatusForbidden, tr.do(agentRequest("GET", path, "")).Code)

	tr.agents.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, tr.do(agentRequest("GET", path, "")).Code)

	tr.agents.err = nil
	rec = tr.do(agentRequest("GET", "/api/v1/servers/"+uuid.NewString()+"/summary", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = tr.do(agentRequest("GET", path, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Votes struct {
				Today int64 `json:"today"`
				Total int64 `json:"total"`
			} `json:"votes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(2), body.Data.Votes.Today)
	assert.Equal(t, int64(9), body.Data.Votes.Total)
}

func TestAgentPending(t *testing.T) {
	tr := newTestRouter()
	createdAt := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	playerUUID := uuid.New()
	tr.votes.pending = []*domain.Vote{{ID: uuid.New(), MinecraftUsername: "Steve", MinecraftUUID: &playerUUID, CreatedAt: createdAt}}
	path := "/api/v1/servers/" + tr.server.ID.String() + "/votes/pending"

	rec := tr.do(agentRequest("GET", path+"?player="+playerUUID.String(), ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, &playerUUID, tr.votes.pendingFor)
	assert.Equal(t, pendingVotesLimit, tr.votes.limit)

	var votes []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &votes))
	require.Len(t, votes, 1)
	assert.Equal(t, "Steve", votes[0]["player_name"])
	assert.Equal(t, playerUUID.String(), votes[0]["player_uuid"])
	assert.Equal(t, "MC Votes", votes[0]["service_name"])
	assert.Equal(t, float64(createdAt.UnixMilli()), votes[0]["timestamp"])
	assert.Equal(t, false, votes[0]["claimed"])
	assert.Equal(t, []any{}, votes[0]["rewards"])

	rec = tr.do(agentRequest("GET", path+"?player=nope", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = tr.do(agentRequest("GET", "/api/v1/servers/"+tr.server.ID.String()+"/votes/bulk", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, tr.votes.pendingFor)
	assert.Zero(t, tr.votes.limit)
}

func TestAgentClaim(t *testing.T) {
	tr := newTestRouter()
	voteID := uuid.New()
	rewardID := uuid.New()
	tr.votes.claim = &domain.ClaimResult{
		Vote:     &domain.Vote{ID: voteID, MinecraftUsername: "Steve", Claimed: true},
		Rewards:  []domain.Reward{{ID: rewardID, Name: "Diamond", Type: domain.RewardTypeItem}},
		Commands: []string{"give Steve diamond 1"},
	}

	rec := tr.do(agentRequest("POST", "/api/v1/votes/"+voteID.String()+"/claim", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"message": "Vote claimed successfully",
		"data": {
			"vote_id": "`+voteID.String()+`",
			"minecraft_username": "Steve",
			"rewards": [{"id": "`+rewardID.String()+`", "name": "Diamond", "type": "item"}],
			"commands": ["give Steve diamond 1"]
		}
	}`, rec.Body.String())

	tr.votes.claimErr = domain.ErrVoteAlreadyClaimed
	rec = tr.do(agentRequest("POST", "/api/v1/votes/"+voteID.String()+"/claim", ""))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"vote already claimed"}`, rec.Body.String())

	rec = tr.do(agentRequest("POST", "/api/v1/votes/nope/claim", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentRecordStats(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		players int
		max     int
	}{
		{"current players", `{"current_players":7,"max_players":50}`, http.StatusOK, 7, 50},
		{"players online alias", `{"players_online":3}`, http.StatusOK, 3, 20},
		{"empty body keeps last values", `{}`, http.StatusOK, 4, 20},
		{"negative", `{"current_players":-1}`, http.StatusUnprocessableEntity, 0, 0},
		{"malformed", `{"current_players":`, http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter()
			rec := tr.do(agentRequest("POST", "/api/v1/servers/"+tr.server.ID.String()+"/stats", tt.body))
			assert.Equal(t, tt.status, rec.Code)

			if tt.status != http.StatusOK {
				assert.Nil(t, tr.stats.heartbeat)
				return
			}
			require.NotNil(t, tr.stats.heartbeat)
			assert.Equal(t, tt.players, tr.stats.heartbeat.CurrentPlayers)
			assert.Equal(t, tt.max, tr.stats.heartbeat.MaxPlayers)
		})
	}
}

func TestAgentLeaderboard(t *testing.T) {
	tr := newTestRouter()
	lastVote := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	tr.stats.entries = []domain.LeaderboardEntry{{Position: 1, MinecraftUsername: "Steve", VoteCount: 3, LastVoteAt: lastVote}}

	rec := tr.do(agentRequest("GET", "/api/v1/servers/"+tr.server.ID.String()+"/leaderboard?period=daily&limit=3", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PeriodDaily, tr.stats.period)
	assert.Equal(t, 3, tr.stats.limit)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Steve", entries[0]["player_name"])
	assert.Equal(t, float64(3), entries[0]["votes"])
	assert.Equal(t, float64(lastVote.UnixMilli()), entries[0]["last_vote"])
	assert.Nil(t, entries[0]["player_uuid"])
}

func TestCORSMiddleware(t *testing.T) {
	tr := newTestRouter()

	req := httptest.NewRequest("OPTIONS", "/api/servers/"+tr.server.ID.String()+"/votes", nil)
	req.Header.Set("Origin", "https://mcvotes.example")
	rec := tr.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://mcvotes.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/api/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = tr.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_WildcardNeverAllowsCredentials(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		wantOrigin  string
		credentials string
	}{
		{"wildcard", []string{"*"}, "https://evil.example", "*", ""},
		{"listed beside wildcard", []string{"*", "https://mcvotes.example"}, "https://mcvotes.example", "https://mcvotes.example", "true"},
		{"empty list", nil, "https://evil.example", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/servers/x/votes", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORSMiddleware(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.credentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
