package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type claimKey struct {
	rewardID uuid.UUID
	day      string
}

// memStore backs the in-memory repositories used by the service tests.
type memStore struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	servers     map[uuid.UUID]*domain.Server
	votes       []*domain.Vote
	rewards     []domain.Reward
	dailyClaims map[claimKey]int
	tokens      map[string]*domain.ServerToken
	failSave    error
}

func newMemStore() *memStore {
	return &memStore{
		servers:     make(map[uuid.UUID]*domain.Server),
		dailyClaims: make(map[claimKey]int),
		tokens:      make(map[string]*domain.ServerToken),
	}
}

func (m *memStore) addServer(s *domain.Server) *domain.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.servers[s.ID] = &cp
	return s
}

func (m *memStore) addVote(v *domain.Vote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.votes = append(m.votes, &cp)
}

func (m *memStore) addReward(r domain.Reward) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards = append(m.rewards, r)
}

func (m *memStore) setRewardActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rewards {
		if m.rewards[i].ID == id {
			m.rewards[i].IsActive = active
		}
	}
}

func (m *memStore) server(id uuid.UUID) domain.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.servers[id]
}

func (m *memStore) voteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes)
}

func (m *memStore) claimsOn(rewardID uuid.UUID, day time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyClaims[claimKey{rewardID, day.UTC().Format(time.DateOnly)}]
}

func (m *memStore) repositories() ports.Repositories {
	return ports.Repositories{
		Servers: &memServerRepo{m},
		Votes:   &memVoteRepo{m},
		Rewards: &memRewardRepo{m},
	}
}

type memUnitOfWork struct {
	store *memStore
}

// Do serializes every unit of work, which is stricter than the per-key
// advisory locks of the postgres implementation.
func (u *memUnitOfWork) Do(ctx context.Context, lockKeys []string, fn func(ctx context.Context, repos ports.Repositories) error) error {
	u.store.txMu.Lock()
	defer u.store.txMu.Unlock()
	return fn(ctx, u.store.repositories())
}

type memServerRepo struct {
	m *memStore
}

func (r *memServerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Server, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.servers[id]
	if !ok {
		return nil, domain.ErrServerNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memServerRepo) GetAll(ctx context.Context) ([]*domain.Server, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*domain.Server{}
	for _, s := range r.m.servers {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memServerRepo) ListApproved(ctx context.Context) ([]*domain.Server, error) {
	all, _ := r.GetAll(ctx)
	out := []*domain.Server{}
	for _, s := range all {
		if s.IsApproved() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memServerRepo) UpdateVoteCounters(ctx context.Context, id uuid.UUID, total, monthly int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.servers[id]
	if !ok {
		return domain.ErrServerNotFound
	}
	s.TotalVotes = total
	s.MonthlyVotes = monthly
	return nil
}

func (r *memServerRepo) RecordHeartbeat(ctx context.Context, id uuid.UUID, hb domain.Heartbeat, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.servers[id]
	if !ok {
		return domain.ErrServerNotFound
	}
	s.IsOnline = true
	s.CurrentPlayers = hb.CurrentPlayers
	s.MaxPlayers = hb.MaxPlayers
	s.LastPingAt = &at
	return nil
}

func (r *memServerRepo) MarkOfflineBefore(ctx context.Context, threshold time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.servers {
		if s.IsOnline && (s.LastPingAt == nil || s.LastPingAt.Before(threshold)) {
			s.IsOnline = false
			s.CurrentPlayers = 0
			n++
		}
	}
	return n, nil
}

type memVoteRepo struct {
	m *memStore
}

func (r *memVoteRepo) Save(ctx context.Context, vote *domain.Vote) error {
	if r.m.failSave != nil {
		return r.m.failSave
	}
	r.m.addVote(vote)
	return nil
}

func (r *memVoteRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vote, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.votes {
		if v.ID == id {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrVoteNotFound
}

func (r *memVoteRepo) filter(keep func(v *domain.Vote) bool) []*domain.Vote {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*domain.Vote{}
	for _, v := range r.m.votes {
		if keep(v) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out
}

func latest(votes []*domain.Vote) *domain.Vote {
	var best *domain.Vote
	for _, v := range votes {
		if best == nil || v.CreatedAt.After(best.CreatedAt) {
			best = v
		}
	}
	return best
}

func (r *memVoteRepo) ExistsSince(ctx context.Context, serverID, voterID uuid.UUID, since time.Time) (bool, error) {
	votes := r.filter(func(v *domain.Vote) bool {
		return v.ServerID == serverID && v.VoterID == voterID && !v.CreatedAt.Before(since)
	})
	return len(votes) > 0, nil
}

func (r *memVoteRepo) LatestByVoter(ctx context.Context, serverID, voterID uuid.UUID) (*domain.Vote, error) {
	return latest(r.filter(func(v *domain.Vote) bool {
		return v.ServerID == serverID && v.VoterID == voterID
	})), nil
}

func (r *memVoteRepo) LatestByUsername(ctx context.Context, serverID uuid.UUID, username string) (*domain.Vote, error) {
	return latest(r.filter(func(v *domain.Vote) bool {
		return v.ServerID == serverID && v.MinecraftUsername == username
	})), nil
}

func (r *memVoteRepo) CountByUsername(ctx context.Context, serverID uuid.UUID, username string) (int64, error) {
	return int64(len(r.filter(func(v *domain.Vote) bool {
		return v.ServerID == serverID && v.MinecraftUsername == username
	}))), nil
}

func (r *memVoteRepo) Count(ctx context.Context, serverID uuid.UUID, since *time.Time) (int64, error) {
	return int64(len(r.filter(func(v *domain.Vote) bool {
		return v.ServerID == serverID && (since == nil || !v.CreatedAt.Before(*since))
	}))), nil
}

func (r *memVoteRepo) CountUnclaimed(ctx context.Context, serverID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(v *domain.Vote) bool {
		return v.ServerID == serverID && !v.Claimed
	}))), nil
}

func (r *memVoteRepo) ClaimedRewardCounts(ctx context.Context, serverID uuid.UUID, day time.Time) (map[uuid.UUID]int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d := domain.StartOfDay(day).Format(time.DateOnly)
	out := make(map[uuid.UUID]int)
	for key, n := range r.m.dailyClaims {
		if key.day == d {
			out[key.rewardID] = n
		}
	}
	return out, nil
}

func (r *memVoteRepo) ListUnclaimed(ctx context.Context, serverID uuid.UUID, playerUUID *uuid.UUID, limit int) ([]*domain.Vote, error) {
	votes := r.filter(func(v *domain.Vote) bool {
		if v.ServerID != serverID || v.Claimed {
			return false
		}
		return playerUUID == nil || (v.MinecraftUUID != nil && *v.MinecraftUUID == *playerUUID)
	})
	sort.SliceStable(votes, func(i, j int) bool { return votes[i].CreatedAt.Before(votes[j].CreatedAt) })
	if limit > 0 && len(votes) > limit {
		votes = votes[:limit]
	}
	return votes, nil
}

func (r *memVoteRepo) MarkClaimed(ctx context.Context, vote *domain.Vote) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.votes {
		if v.ID == vote.ID {
			if v.Claimed {
				return domain.ErrVoteAlreadyClaimed
			}
			v.Claimed = true
			v.ClaimedAt = vote.ClaimedAt
			v.ClaimedRewards = vote.ClaimedRewards
			return nil
		}
	}
	return domain.ErrVoteNotFound
}

func (r *memVoteRepo) TopVoters(ctx context.Context, serverID uuid.UUID, since *time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	votes := r.filter(func(v *domain.Vote) bool {
		return v.ServerID == serverID && (since == nil || !v.CreatedAt.Before(*since))
	})

	byName := map[string]*domain.LeaderboardEntry{}
	uuidAt := map[string]time.Time{}
	for _, v := range votes {
		e, ok := byName[v.MinecraftUsername]
		if !ok {
			e = &domain.LeaderboardEntry{MinecraftUsername: v.MinecraftUsername}
			byName[v.MinecraftUsername] = e
		}
		e.VoteCount++
		if v.CreatedAt.After(e.LastVoteAt) {
			e.LastVoteAt = v.CreatedAt
		}
		if v.MinecraftUUID != nil && !v.CreatedAt.Before(uuidAt[v.MinecraftUsername]) {
			e.MinecraftUUID = v.MinecraftUUID
			uuidAt[v.MinecraftUsername] = v.CreatedAt
		}
	}

	out := []domain.LeaderboardEntry{}
	for _, e := range byName {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VoteCount != out[j].VoteCount {
			return out[i].VoteCount > out[j].VoteCount
		}
		return out[i].MinecraftUsername < out[j].MinecraftUsername
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memRewardRepo struct {
	m *memStore
}

func (r *memRewardRepo) ListActive(ctx context.Context, serverID uuid.UUID) ([]domain.Reward, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []domain.Reward{}
	for _, rw := range r.m.rewards {
		if rw.ServerID == serverID && rw.IsActive {
			out = append(out, rw)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *memRewardRepo) IncrementDailyClaims(ctx context.Context, serverID uuid.UUID, rewardIDs []uuid.UUID, day time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d := domain.StartOfDay(day).Format(time.DateOnly)
	for _, id := range rewardIDs {
		r.m.dailyClaims[claimKey{id, d}]++
	}
	return nil
}

type memTokenRepo struct {
	m         *memStore
	updateErr error
}

func (r *memTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*domain.ServerToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tokens[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTokenRepo) Update(ctx context.Context, token *domain.ServerToken) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *token
	r.m.tokens[token.TokenHash] = &cp
	return nil
}

// manualClock is a settable clock.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceSource returns the scripted rolls in order, wrapping around.
type sequenceSource struct {
	mu    sync.Mutex
	rolls []int
	next  int
	drawn int
}

func (s *sequenceSource) Roll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rolls[s.next%len(s.rolls)]
	s.next++
	s.drawn++
	return r
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.VoteReceivedEvent
	err    error
}

func (n *fakeNotifier) PublishVoteReceived(ctx context.Context, event domain.VoteReceivedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type webhookCall struct {
	url   string
	event domain.VoteReceivedEvent
}

type fakeWebhooks struct {
	mu    sync.Mutex
	calls []webhookCall
}

func (w *fakeWebhooks) NotifyVoteReceived(webhookURL string, event domain.VoteReceivedEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, webhookCall{url: webhookURL, event: event})
}

type fakeMetrics struct {
	mu            sync.Mutex
	recorded      int
	rejected      map[string]int
	earned        int
	claimed       int
	markedOffline int64
	durations     int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{rejected: make(map[string]int)}
}

func (f *fakeMetrics) IncVotesRecorded() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded++
}

func (f *fakeMetrics) IncVoteRejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[reason]++
}

func (f *fakeMetrics) AddRewardsEarned(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.earned += n
}

func (f *fakeMetrics) AddRewardsClaimed(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimed += n
}

func (f *fakeMetrics) AddServersMarkedOffline(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedOffline += n
}

func (f *fakeMetrics) ObserveVoteRecordDuration(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations++
}

type fakePinger struct {
	answers map[string]domain.Heartbeat
}

func (p *fakePinger) Ping(ctx context.Context, address string, port int) (domain.Heartbeat, error) {
	hb, ok := p.answers[address]
	if !ok {
		return domain.Heartbeat{}, errors.New("connection refused")
	}
	return hb, nil
}

var baseTime = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func approvedServer() *domain.Server {
	return &domain.Server{
		ID:                   uuid.New(),
		OwnerID:              uuid.New(),
		Name:                 "Kaizen",
		Slug:                 "kaizen",
		Address:              "play.kaizen.example",
		Port:                 domain.DefaultMinecraftPort,
		Status:               domain.ServerStatusApproved,
		HasPairedIntegration: true,
		CreatedAt:            baseTime.AddDate(0, -1, 0),
	}
}

func voteAt(server *domain.Server, voterID uuid.UUID, username string, at time.Time, streak int) *domain.Vote {
	return &domain.Vote{
		ID:                uuid.New(),
		ServerID:          server.ID,
		VoterID:           voterID,
		MinecraftUsername: username,
		Streak:            streak,
		EarnedRewards:     []uuid.UUID{},
		CreatedAt:         at,
	}
}

func intPtr(n int) *int {
	return &n
}
