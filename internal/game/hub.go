package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stepchess/internal/model"
)

const (
	watcherBuffer = 8
	idleRoomTTL   = 24 * time.Hour
	cleanupEvery  = 5 * time.Minute
)

// Hub fans committed game state out to live watchers
type Hub struct {
	Mu    sync.Mutex
	Rooms map[string]*Room
}

// Room holds the watchers of a single game
type Room struct {
	Watchers map[chan []byte]struct{}
	LastSeen time.Time
	// LastVersion is the newest game version sent to this room.
	LastVersion int64
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{Rooms: make(map[string]*Room)}
}

// Run removes idle rooms until ctx is done
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(cleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			h.Cleanup(now)
		}
	}
}

// Cleanup drops rooms with no watchers that have not seen traffic for a day
func (h *Hub) Cleanup(now time.Time) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	for id, r := range h.Rooms {
		if len(r.Watchers) == 0 && now.Sub(r.LastSeen) > idleRoomTTL {
			delete(h.Rooms, id)
		}
	}
}

// Watch subscribes to a game. The returned func unsubscribes and closes the
// channel.
func (h *Hub) Watch(gameID string) (<-chan []byte, func()) {
	ch := make(chan []byte, watcherBuffer)
	h.Mu.Lock()
	r, ok := h.Rooms[gameID]
	if !ok {
		r = &Room{Watchers: make(map[chan []byte]struct{})}
		h.Rooms[gameID] = r
	}
	r.Watchers[ch] = struct{}{}
	r.LastSeen = time.Now()
	h.Mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.Mu.Lock()
			if r, ok := h.Rooms[gameID]; ok {
				delete(r.Watchers, ch)
				r.LastSeen = time.Now()
			}
			h.Mu.Unlock()
			close(ch)
		})
	}
}

// WatcherCount returns how many watchers a game has
func (h *Hub) WatcherCount(gameID string) int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	if r, ok := h.Rooms[gameID]; ok {
		return len(r.Watchers)
	}
	return 0
}

// Publish sends the state of g to all of its watchers. Slow watchers miss
// updates rather than block the caller. Commits can reach Publish out of
// order, so a game no newer than the last one sent is dropped.
func (h *Hub) Publish(g *model.Game) {
	if h == nil || g == nil {
		return
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	r, ok := h.Rooms[g.ID]
	if !ok {
		return
	}
	r.LastSeen = time.Now()
	if g.Version != 0 && g.Version <= r.LastVersion {
		return
	}
	r.LastVersion = g.Version
	data, err := json.Marshal(StateOf(g, len(r.Watchers)))
	if err != nil {
		return
	}
	for ch := range r.Watchers {
		select {
		case ch <- data:
		default:
		}
	}
}
