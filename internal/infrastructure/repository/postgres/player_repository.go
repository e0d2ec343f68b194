package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/volleystats/parser/internal/domain/player"
)

type playerTableModel struct {
	ID            int       `db:"id"`
	CompetitionID int       `db:"competition_id"`
	Name          string    `db:"name"`
	Number        int       `db:"number"`
	Position      string    `db:"position"`
	URL           string    `db:"url"`
	PhotoURL      string    `db:"photo_url"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type PlayerRepository struct {
	db *sqlx.DB
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) Upsert(ctx context.Context, competitionID int, p player.Player) error {
	const query = `
		INSERT INTO players (id, competition_id, name, number, position, url, photo_url, created_at, updated_at)
		VALUES (:id, :competition_id, :name, :number, :position, :url, :photo_url, NOW(), NOW())
		ON CONFLICT (id, competition_id) DO UPDATE SET
			name = EXCLUDED.name,
			number = EXCLUDED.number,
			position = EXCLUDED.position,
			url = EXCLUDED.url,
			photo_url = EXCLUDED.photo_url,
			updated_at = NOW()`

	model := playerTableModel{
		ID:            p.ID,
		CompetitionID: competitionID,
		Name:          p.Name,
		Number:        p.Number,
		Position:      p.Position,
		URL:           p.URL,
		PhotoURL:      p.PhotoURL,
	}
	if _, err := r.db.NamedExecContext(ctx, query, model); err != nil {
		return fmt.Errorf("upsert player %d: %w", p.ID, err)
	}
	return nil
}

func (r *PlayerRepository) ListByCompetition(ctx context.Context, competitionID int) ([]player.Player, error) {
	const query = `
		SELECT id, competition_id, name, number, position, url, photo_url, created_at, updated_at
		FROM players WHERE competition_id = $1 ORDER BY id`

	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, competitionID); err != nil {
		return nil, fmt.Errorf("select players for competition %d: %w", competitionID, err)
	}

	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, player.Player{
			ID:       row.ID,
			Name:     row.Name,
			Number:   row.Number,
			Position: row.Position,
			URL:      row.URL,
			PhotoURL: row.PhotoURL,
		})
	}
	return out, nil
}
