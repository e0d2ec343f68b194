package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/volleystats/parser/internal/domain/team"
)

type teamTableModel struct {
	ID            string    `db:"id"`
	CompetitionID int       `db:"competition_id"`
	Name          string    `db:"name"`
	LogoURL       string    `db:"logo_url"`
	URL           string    `db:"url"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) Upsert(ctx context.Context, competitionID int, t team.Team) error {
	const query = `
		INSERT INTO teams (id, competition_id, name, logo_url, url, created_at, updated_at)
		VALUES (:id, :competition_id, :name, :logo_url, :url, NOW(), NOW())
		ON CONFLICT (id, competition_id) DO UPDATE SET
			name = EXCLUDED.name,
			logo_url = EXCLUDED.logo_url,
			url = EXCLUDED.url,
			updated_at = NOW()`

	model := teamTableModel{
		ID:            t.ID,
		CompetitionID: competitionID,
		Name:          t.Name,
		LogoURL:       t.LogoURL,
		URL:           t.URL,
	}
	if _, err := r.db.NamedExecContext(ctx, query, model); err != nil {
		return fmt.Errorf("upsert team %s: %w", t.ID, err)
	}
	return nil
}

func (r *TeamRepository) ListByCompetition(ctx context.Context, competitionID int) ([]team.Team, error) {
	const query = `
		SELECT id, competition_id, name, logo_url, url, created_at, updated_at
		FROM teams WHERE competition_id = $1 ORDER BY id`

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, competitionID); err != nil {
		return nil, fmt.Errorf("select teams for competition %d: %w", competitionID, err)
	}

	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		out = append(out, team.Team{ID: row.ID, Name: row.Name, LogoURL: row.LogoURL, URL: row.URL})
	}
	return out, nil
}
