package team

import "context"

// Repository persists discovered teams keyed by competition.
type Repository interface {
	Upsert(ctx context.Context, competitionID int, t Team) error
	ListByCompetition(ctx context.Context, competitionID int) ([]Team, error)
}
