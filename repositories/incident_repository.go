package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/ligasur/matchday/models"
)

var (
	ErrIncidentNotFound      = errors.New("incident not found")
	ErrIncidentPlayerInvalid = errors.New("incident references an unknown player")
	ErrIncidentMatchInvalid  = errors.New("incident references an unknown match")
)

type IncidentRepository interface {
	// Insert идемпотентна по клиентскому operation id: повтор того же
	// запроса возвращает id уже сохранённой записи, не создавая вторую.
	Insert(ctx context.Context, exec SQLExecutor, opID string, inc *models.Incident) (int64, error)
	Delete(ctx context.Context, exec SQLExecutor, matchID int, id int64) error
	ListByMatch(ctx context.Context, matchID int) ([]models.Incident, error)
	// ActiveEjectionExists проверяет дисциплинарный конфликт на стороне
	// записи: другая консоль могла уже удалить игрока.
	ActiveEjectionExists(ctx context.Context, exec SQLExecutor, matchID, playerID int) (bool, error)
}

type postgresIncidentRepository struct {
	db *sql.DB
}

func NewPostgresIncidentRepository(db *sql.DB) IncidentRepository {
	return &postgresIncidentRepository{db: db}
}

func (r *postgresIncidentRepository) Insert(ctx context.Context, exec SQLExecutor, opID string, inc *models.Incident) (int64, error) {
	query := `
		INSERT INTO incidents
			(match_id, client_op_id, kind, minute, side, player_id, penalty, own_goal, linked_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (client_op_id) DO NOTHING
		RETURNING id`

	var linked interface{}
	if inc.LinkedID != 0 {
		linked = inc.LinkedID
	}

	var id int64
	err := exec.QueryRowContext(ctx, query,
		inc.MatchID,
		opID,
		string(inc.Kind),
		inc.Minute,
		string(inc.Side),
		inc.PlayerID,
		inc.Penalty,
		inc.OwnGoal,
		linked,
	).Scan(&id)

	if err == nil {
		return id, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		// Конфликт по client_op_id: операция уже применялась, отдаём
		// существующий id.
		lookup := `SELECT id FROM incidents WHERE client_op_id = $1`
		if lookupErr := exec.QueryRowContext(ctx, lookup, opID).Scan(&id); lookupErr != nil {
			return 0, fmt.Errorf("failed to look up incident by operation %s: %w", opID, lookupErr)
		}
		return id, nil
	}
	return 0, r.handleIncidentError(err)
}

func (r *postgresIncidentRepository) Delete(ctx context.Context, exec SQLExecutor, matchID int, id int64) error {
	query := `DELETE FROM incidents WHERE id = $1 AND match_id = $2`
	// Ноль затронутых строк — не ошибка: удаление идемпотентно, повтор
	// после таймаута попадает сюда же.
	if _, err := exec.ExecContext(ctx, query, id, matchID); err != nil {
		return fmt.Errorf("failed to delete incident %d of match %d: %w", id, matchID, err)
	}
	return nil
}

func (r *postgresIncidentRepository) ListByMatch(ctx context.Context, matchID int) ([]models.Incident, error) {
	query := `
		SELECT id, match_id, kind, minute, side, player_id, penalty, own_goal, linked_id, created_at
		FROM incidents
		WHERE match_id = $1
		ORDER BY minute ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents for match %d: %w", matchID, err)
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		var inc models.Incident
		var kind, side string
		var linked sql.NullInt64
		if scanErr := rows.Scan(
			&inc.ID,
			&inc.MatchID,
			&kind,
			&inc.Minute,
			&side,
			&inc.PlayerID,
			&inc.Penalty,
			&inc.OwnGoal,
			&linked,
			&inc.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", scanErr)
		}
		inc.Kind = models.IncidentKind(kind)
		inc.Side = models.Side(side)
		if linked.Valid {
			inc.LinkedID = linked.Int64
		}
		incidents = append(incidents, inc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during incident rows iteration: %w", err)
	}
	return incidents, nil
}

func (r *postgresIncidentRepository) ActiveEjectionExists(ctx context.Context, exec SQLExecutor, matchID, playerID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM incidents
			WHERE match_id = $1 AND player_id = $2 AND kind IN ('red_card', 'double_yellow')
		)`

	var exists bool
	if err := exec.QueryRowContext(ctx, query, matchID, playerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ejection for player %d in match %d: %w", playerID, matchID, err)
	}
	return exists, nil
}

func (r *postgresIncidentRepository) handleIncidentError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
		switch pqErr.Constraint {
		case "incidents_player_id_fkey":
			return ErrIncidentPlayerInvalid
		case "incidents_match_id_fkey":
			return ErrIncidentMatchInvalid
		}
	}
	return err
}
