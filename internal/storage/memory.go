package storage

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"stepchess/internal/model"
)

type balanceKey struct {
	gameID   string
	playerID string
}

type hourKey struct {
	playerID string
	window   time.Time
}

type memState struct {
	games         map[string]*model.Game
	active        map[string]string
	balances      map[balanceKey]int64
	hourly        map[hourKey]int64
	queue         map[string]model.QueueEntry
	notifications map[string]model.MatchNotification
	leaderboard   map[string]model.LeaderboardRecord
	scored        map[string]time.Time
}

func newMemState() *memState {
	return &memState{
		games:         make(map[string]*model.Game),
		active:        make(map[string]string),
		balances:      make(map[balanceKey]int64),
		hourly:        make(map[hourKey]int64),
		queue:         make(map[string]model.QueueEntry),
		notifications: make(map[string]model.MatchNotification),
		leaderboard:   make(map[string]model.LeaderboardRecord),
		scored:        make(map[string]time.Time),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		games:         make(map[string]*model.Game, len(s.games)),
		active:        maps.Clone(s.active),
		balances:      maps.Clone(s.balances),
		hourly:        maps.Clone(s.hourly),
		queue:         maps.Clone(s.queue),
		notifications: maps.Clone(s.notifications),
		leaderboard:   maps.Clone(s.leaderboard),
		scored:        maps.Clone(s.scored),
	}
	for id, g := range s.games {
		c.games[id] = g.Clone()
	}
	return c
}

// Memory is a Store kept in process memory. Transactions are serialised
// under one mutex and run against a copy that replaces the live state only
// on success.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(&memTx{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) Game(ctx context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.state.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) Balance(ctx context.Context, gameID, playerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.balances[balanceKey{gameID, playerID}], nil
}

func (m *Memory) LeaderboardRecord(ctx context.Context, playerID string) (model.LeaderboardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.leaderboard[playerID]
	if !ok {
		r.PlayerID = playerID
	}
	return r, nil
}

func (m *Memory) TopLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardRecord, error) {
	m.mu.Lock()
	out := make([]model.LeaderboardRecord, 0, len(m.state.leaderboard))
	for _, r := range m.state.leaderboard {
		out = append(out, r)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Draws != b.Draws {
			return a.Draws > b.Draws
		}
		if a.Losses != b.Losses {
			return a.Losses < b.Losses
		}
		return a.PlayerID < b.PlayerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UnscoredCompletedGames(ctx context.Context, limit int) ([]*model.Game, error) {
	m.mu.Lock()
	var out []*model.Game
	for id, g := range m.state.games {
		if g.Status != model.StatusCompleted {
			continue
		}
		if _, ok := m.state.scored[id]; ok {
			continue
		}
		out = append(out, g.Clone())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return endedAt(out[i]).Before(endedAt(out[j]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func endedAt(g *model.Game) time.Time {
	if g.EndedAt != nil {
		return *g.EndedAt
	}
	return g.UpdatedAt
}

type memTx struct {
	s *memState
}

func (t *memTx) GameForUpdate(ctx context.Context, id string) (*model.Game, error) {
	g, ok := t.s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (t *memTx) InsertGame(ctx context.Context, g *model.Game) error {
	g.Version = 1
	t.s.games[g.ID] = g.Clone()
	return nil
}

func (t *memTx) UpdateGame(ctx context.Context, g *model.Game) error {
	if _, ok := t.s.games[g.ID]; !ok {
		return ErrNotFound
	}
	g.Version++
	t.s.games[g.ID] = g.Clone()
	return nil
}

func (t *memTx) ClaimActiveGame(ctx context.Context, playerID, gameID string) error {
	if current, ok := t.s.active[playerID]; ok {
		if current == gameID {
			return nil
		}
		return ErrActiveGameExists
	}
	t.s.active[playerID] = gameID
	return nil
}

func (t *memTx) ReleaseActiveGame(ctx context.Context, playerID, gameID string) error {
	if t.s.active[playerID] == gameID {
		delete(t.s.active, playerID)
	}
	return nil
}

func (t *memTx) ActiveGame(ctx context.Context, playerID string) (string, bool, error) {
	id, ok := t.s.active[playerID]
	return id, ok, nil
}

func (t *memTx) Balance(ctx context.Context, gameID, playerID string) (int64, error) {
	return t.s.balances[balanceKey{gameID, playerID}], nil
}

func (t *memTx) AddBalance(ctx context.Context, gameID, playerID string, delta int64) (int64, error) {
	k := balanceKey{gameID, playerID}
	t.s.balances[k] += delta
	return t.s.balances[k], nil
}

func (t *memTx) SpendBalance(ctx context.Context, gameID, playerID string, cost int64) (int64, error) {
	k := balanceKey{gameID, playerID}
	have := t.s.balances[k]
	if cost <= 0 {
		return have, nil
	}
	if have < cost {
		return have, ErrInsufficientBalance
	}
	t.s.balances[k] = have - cost
	return have - cost, nil
}

func (t *memTx) AddHourlyEarn(ctx context.Context, playerID string, window time.Time, delta, limit int64) (int64, error) {
	k := hourKey{playerID, window}
	next := t.s.hourly[k] + delta
	if limit > 0 && next > limit {
		return 0, ErrHourlyCapExceeded
	}
	t.s.hourly[k] = next
	return next, nil
}

func (t *memTx) EnqueuePlayer(ctx context.Context, e model.QueueEntry) (model.QueueEntry, error) {
	if existing, ok := t.s.queue[e.PlayerID]; ok {
		return existing, nil
	}
	t.s.queue[e.PlayerID] = e
	return e, nil
}

func (t *memTx) RemoveQueueEntry(ctx context.Context, playerID string) (bool, error) {
	_, ok := t.s.queue[playerID]
	delete(t.s.queue, playerID)
	return ok, nil
}

func (t *memTx) ClaimQueueHead(ctx context.Context, n int) ([]model.QueueEntry, error) {
	out := make([]model.QueueEntry, 0, len(t.s.queue))
	for _, e := range t.s.queue {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (t *memTx) PutNotification(ctx context.Context, n model.MatchNotification) error {
	t.s.notifications[n.PlayerID] = n
	return nil
}

func (t *memTx) TakeNotification(ctx context.Context, playerID string) (model.MatchNotification, bool, error) {
	n, ok := t.s.notifications[playerID]
	delete(t.s.notifications, playerID)
	return n, ok, nil
}

func (t *memTx) MarkScored(ctx context.Context, gameID string, at time.Time) (bool, error) {
	if _, ok := t.s.scored[gameID]; ok {
		return false, nil
	}
	t.s.scored[gameID] = at
	return true, nil
}

func (t *memTx) IncrementLeaderboard(ctx context.Context, playerID string, d model.LeaderboardDelta) error {
	if d.Zero() {
		return nil
	}
	r := t.s.leaderboard[playerID]
	r.PlayerID = playerID
	r.Apply(d)
	t.s.leaderboard[playerID] = r
	return nil
}
