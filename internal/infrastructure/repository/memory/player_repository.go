package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/volleystats/parser/internal/domain/player"
)

type PlayerRepository struct {
	mu    sync.RWMutex
	items map[int]map[int]player.Player
}

func NewPlayerRepository() *PlayerRepository {
	return &PlayerRepository{items: map[int]map[int]player.Player{}}
}

func (r *PlayerRepository) Upsert(_ context.Context, competitionID int, p player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.items[competitionID]
	if !ok {
		byID = map[int]player.Player{}
		r.items[competitionID] = byID
	}
	byID[p.ID] = p
	return nil
}

func (r *PlayerRepository) ListByCompetition(_ context.Context, competitionID int) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]player.Player, 0, len(r.items[competitionID]))
	for _, p := range r.items[competitionID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
