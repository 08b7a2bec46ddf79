package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/benchrig/benchrig/pkg/state"
)

// Event is the SSE payload for one state mutation.
type Event struct {
	Path      string   `json:"path"`
	Content   any      `json:"content"`
	Operation state.Op `json:"operation"`
}

// StreamManager fans state events out to SSE subscribers, each filtered by
// a path prefix.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]state.Path
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]state.Path),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Subscribe registers a subscriber for events at or below prefix.
func (sm *StreamManager) Subscribe(prefix state.Path) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 64)
	sm.subscribers[ch] = slices.Clone(prefix)

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast sends ev to every subscriber whose prefix covers its path.
// Slow subscribers drop messages rather than block the mutating goroutine.
func (sm *StreamManager) Broadcast(ev state.Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch, prefix := range sm.subscribers {
		rel, ok := relative(ev.Path, prefix)
		if !ok {
			continue
		}
		msg, err := json.Marshal(Event{Path: rel.String(), Content: ev.Content, Operation: ev.Op})
		if err != nil {
			sm.logger.Warn("SSE: Event not encodable", "path", ev.Path.String(), "err", err)
			continue
		}
		select {
		case ch <- string(msg):
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "path", ev.Path.String())
		}
	}
}

// relative returns path with prefix removed, or false if path is not at or
// below prefix.
func relative(path, prefix state.Path) (state.Path, bool) {
	if len(path) < len(prefix) || !slices.Equal(path[:len(prefix)], prefix) {
		return nil, false
	}
	return slices.Clone(path[len(prefix):]), true
}
