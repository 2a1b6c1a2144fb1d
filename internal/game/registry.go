package game

import (
	"fmt"
	"slices"
	"sync"

	"credit-ledger/internal/model"
)

// Registry manages game registration and lookup.
// It is safe for concurrent use.
type Registry struct {
	games map[model.GameType]Game
	mu    sync.RWMutex
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		games: make(map[model.GameType]Game),
	}
}

// Register adds a game to the registry.
// If a game with the same type already exists, it will be replaced.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if g.Type() == "" {
		return fmt.Errorf("game type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Type()] = g
	return nil
}

// Get retrieves a game by its type.
func (r *Registry) Get(t model.GameType) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[t]
	return g, ok
}

// Types returns the registered game types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.games))
	for t := range r.games {
		types = append(types, string(t))
	}
	slices.Sort(types)
	return types
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
