package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/ligasur/matchday/models"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchPhaseInvalid = errors.New("stored match phase is invalid")
)

type MatchRepository interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetForUpdate читает состояние фаз под блокировкой строки; вызывается
	// внутри транзакции, которая валидирует переход или инцидент.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	UpdatePhase(ctx context.Context, exec SQLExecutor, id int, phase models.Phase, firstHalfStart, secondHalfStart *time.Time) error
	// RecordOperation регистрирует клиентский operation id перехода фазы.
	// Возвращает true, если операция уже применялась: повтор после таймаута
	// не должен применить переход дважды.
	RecordOperation(ctx context.Context, exec SQLExecutor, opID string, matchID int, action models.PhaseAction) (alreadyApplied bool, err error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `
		SELECT m.id, m.edition_id, m.local_team_id, m.visiting_team_id,
		       m.scheduled_at, m.first_half_start, m.second_half_start,
		       m.half_minutes, m.half_time_minutes, m.phase,
		       lt.name, vt.name
		FROM matches m
		JOIN teams lt ON lt.id = m.local_team_id
		JOIN teams vt ON vt.id = m.visiting_team_id
		WHERE m.id = $1`

	match := &models.Match{}
	var phaseCode string
	var localName, visitingName string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.EditionID,
		&match.LocalTeamID,
		&match.VisitingTeamID,
		&match.ScheduledAt,
		&match.FirstHalfStart,
		&match.SecondHalfStart,
		&match.HalfMinutes,
		&match.HalfTimeMinutes,
		&phaseCode,
		&localName,
		&visitingName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}

	phase, ok := models.ParsePhase(phaseCode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMatchPhaseInvalid, phaseCode)
	}
	match.Phase = phase
	match.LocalTeam = &models.Team{ID: match.LocalTeamID, Name: localName}
	match.VisitingTeam = &models.Team{ID: match.VisitingTeamID, Name: visitingName}
	return match, nil
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `
		SELECT id, edition_id, local_team_id, visiting_team_id,
		       scheduled_at, first_half_start, second_half_start,
		       half_minutes, half_time_minutes, phase
		FROM matches
		WHERE id = $1
		FOR UPDATE`

	match := &models.Match{}
	var phaseCode string
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.EditionID,
		&match.LocalTeamID,
		&match.VisitingTeamID,
		&match.ScheduledAt,
		&match.FirstHalfStart,
		&match.SecondHalfStart,
		&match.HalfMinutes,
		&match.HalfTimeMinutes,
		&phaseCode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match %d: %w", id, err)
	}

	phase, ok := models.ParsePhase(phaseCode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMatchPhaseInvalid, phaseCode)
	}
	match.Phase = phase
	return match, nil
}

func (r *postgresMatchRepository) UpdatePhase(ctx context.Context, exec SQLExecutor, id int, phase models.Phase, firstHalfStart, secondHalfStart *time.Time) error {
	query := `
		UPDATE matches
		SET phase = $1, first_half_start = $2, second_half_start = $3
		WHERE id = $4`

	result, err := exec.ExecContext(ctx, query, phase.String(), firstHalfStart, secondHalfStart, id)
	if err != nil {
		return fmt.Errorf("failed to update phase for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) RecordOperation(ctx context.Context, exec SQLExecutor, opID string, matchID int, action models.PhaseAction) (bool, error) {
	query := `
		INSERT INTO console_operations (op_id, match_id, action)
		VALUES ($1, $2, $3)
		ON CONFLICT (op_id) DO NOTHING`

	result, err := exec.ExecContext(ctx, query, opID, matchID, string(action))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			return false, ErrMatchNotFound
		}
		return false, fmt.Errorf("failed to record console operation %s: %w", opID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return affected == 0, nil
}
