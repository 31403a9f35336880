package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ligasur/matchday/models"
)

type RosterRepository interface {
	ListByTeamEdition(ctx context.Context, teamID, editionID int) ([]models.RosterEntry, error)
	// EventualUsage считает, в скольких матчах эдишена игрок уже фигурировал
	// в инцидентах за команду. Выводится из журналов, а не из отдельного
	// счётчика, чтобы не разъезжаться с фактическими записями.
	EventualUsage(ctx context.Context, playerID, teamID, editionID int) (int, error)
}

type postgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) RosterRepository {
	return &postgresRosterRepository{db: db}
}

func (r *postgresRosterRepository) ListByTeamEdition(ctx context.Context, teamID, editionID int) ([]models.RosterEntry, error) {
	query := `
		SELECT re.id, re.player_id, re.team_id, re.edition_id, re.eventual, re.created_at,
		       p.first_name, p.last_name, p.number
		FROM roster_entries re
		JOIN players p ON p.id = re.player_id
		WHERE re.team_id = $1 AND re.edition_id = $2
		ORDER BY p.last_name ASC, p.first_name ASC`

	rows, err := r.db.QueryContext(ctx, query, teamID, editionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster for team %d edition %d: %w", teamID, editionID, err)
	}
	defer rows.Close()

	entries := make([]models.RosterEntry, 0)
	for rows.Next() {
		var entry models.RosterEntry
		var player models.Player
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.PlayerID,
			&entry.TeamID,
			&entry.EditionID,
			&entry.Eventual,
			&entry.CreatedAt,
			&player.FirstName,
			&player.LastName,
			&player.Number,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", scanErr)
		}
		player.ID = entry.PlayerID
		entry.Player = &player
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during roster rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresRosterRepository) EventualUsage(ctx context.Context, playerID, teamID, editionID int) (int, error) {
	query := `
		SELECT COUNT(DISTINCT i.match_id)
		FROM incidents i
		JOIN matches m ON m.id = i.match_id
		WHERE i.player_id = $1
		  AND m.edition_id = $2
		  AND ((i.side = 'local' AND m.local_team_id = $3)
		    OR (i.side = 'visiting' AND m.visiting_team_id = $3))`

	var count int
	if err := r.db.QueryRowContext(ctx, query, playerID, editionID, teamID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count eventual usage for player %d: %w", playerID, err)
	}
	return count, nil
}
