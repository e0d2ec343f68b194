package player

import "context"

// Repository persists discovered players keyed by competition.
type Repository interface {
	Upsert(ctx context.Context, competitionID int, p Player) error
	ListByCompetition(ctx context.Context, competitionID int) ([]Player, error)
}
