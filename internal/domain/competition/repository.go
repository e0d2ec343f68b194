package competition

import "context"

// Repository persists discovered competitions.
type Repository interface {
	Upsert(ctx context.Context, comp Competition) error
	FindByID(ctx context.Context, id int) (*Competition, error)
	List(ctx context.Context) ([]Competition, error)
}
