package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/volleystats/parser/internal/domain/team"
)

type TeamRepository struct {
	mu    sync.RWMutex
	items map[int]map[string]team.Team
}

func NewTeamRepository() *TeamRepository {
	return &TeamRepository{items: map[int]map[string]team.Team{}}
}

func (r *TeamRepository) Upsert(_ context.Context, competitionID int, t team.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.items[competitionID]
	if !ok {
		byID = map[string]team.Team{}
		r.items[competitionID] = byID
	}
	byID[t.ID] = t
	return nil
}

func (r *TeamRepository) ListByCompetition(_ context.Context, competitionID int) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]team.Team, 0, len(r.items[competitionID]))
	for _, t := range r.items[competitionID] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
