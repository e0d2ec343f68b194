package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/volleystats/parser/internal/domain/competition"
)

type CompetitionRepository struct {
	mu    sync.RWMutex
	items map[int]competition.Competition
}

func NewCompetitionRepository() *CompetitionRepository {
	return &CompetitionRepository{items: map[int]competition.Competition{}}
}

func (r *CompetitionRepository) Upsert(_ context.Context, comp competition.Competition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[comp.ID] = comp
	return nil
}

func (r *CompetitionRepository) FindByID(_ context.Context, id int) (*competition.Competition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	comp, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &comp, nil
}

func (r *CompetitionRepository) List(_ context.Context) ([]competition.Competition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]competition.Competition, 0, len(r.items))
	for _, comp := range r.items {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
