package registry

import (
	"sync"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/contracts"
)

// Registry is the single owner of the key→Room mapping. Concurrent notify
// and connect requests for the same key race on Resolve, so get-or-create
// is atomic under the mutex.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// Resolve returns the Room for key, creating it on first reference. The same
// key always yields the same instance until Release evicts it; creation is
// cheap, so callers treat it as idempotent reinitialization of empty state.
func (g *Registry) Resolve(key string) contracts.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[key]
	if !ok {
		r = newRoom(key)
		g.rooms[key] = r
	}
	return r
}

// Peek looks up a Room without creating one.
func (g *Registry) Peek(key string) (contracts.Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[key]
	if !ok {
		return nil, false
	}
	return r, true
}

// Release evicts the Room for key if its connection set is empty. Called
// after the last disconnect only; broadcast paths never create or evict
// rooms, so a Room a connecting client just resolved stays valid.
func (g *Registry) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[key]; ok && r.Len() == 0 {
		delete(g.rooms, key)
	}
}

// Len reports the number of resident rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
