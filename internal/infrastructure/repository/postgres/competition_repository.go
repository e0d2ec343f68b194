package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/volleystats/parser/internal/domain/competition"
)

type competitionTableModel struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	URL       string    `db:"url"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type CompetitionRepository struct {
	db *sqlx.DB
}

func NewCompetitionRepository(db *sqlx.DB) *CompetitionRepository {
	return &CompetitionRepository{db: db}
}

func (r *CompetitionRepository) Upsert(ctx context.Context, comp competition.Competition) error {
	const query = `
		INSERT INTO competitions (id, name, url, created_at, updated_at)
		VALUES (:id, :name, :url, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			updated_at = NOW()`

	model := competitionTableModel{ID: comp.ID, Name: comp.Name, URL: comp.URL}
	if _, err := r.db.NamedExecContext(ctx, query, model); err != nil {
		return fmt.Errorf("upsert competition %d: %w", comp.ID, err)
	}
	return nil
}

func (r *CompetitionRepository) FindByID(ctx context.Context, id int) (*competition.Competition, error) {
	const query = `SELECT id, name, url, created_at, updated_at FROM competitions WHERE id = $1`

	var row competitionTableModel
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get competition %d: %w", id, err)
	}
	comp := competition.Competition{ID: row.ID, Name: row.Name, URL: row.URL}
	return &comp, nil
}

func (r *CompetitionRepository) List(ctx context.Context) ([]competition.Competition, error) {
	const query = `SELECT id, name, url, created_at, updated_at FROM competitions ORDER BY id`

	var rows []competitionTableModel
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select competitions: %w", err)
	}

	out := make([]competition.Competition, 0, len(rows))
	for _, row := range rows {
		out = append(out, competition.Competition{ID: row.ID, Name: row.Name, URL: row.URL})
	}
	return out, nil
}
