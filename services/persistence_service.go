package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ligasur/matchday/live"
	"github.com/ligasur/matchday/models"
	"github.com/ligasur/matchday/repositories"
)

// PersistenceService — серверная сторона границы консоли: реализует
// live.PersistenceAPI поверх Postgres. Хранилище записи — арбитр между
// консолями: проверки фазы и дисциплины повторяются здесь, потому что другая
// консоль могла уже изменить матч.
type PersistenceService struct {
	db        *sql.DB
	matchRepo repositories.MatchRepository
	incRepo   repositories.IncidentRepository
	logger    *slog.Logger
}

var _ live.PersistenceAPI = (*PersistenceService)(nil)

func NewPersistenceService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	incRepo repositories.IncidentRepository,
	logger *slog.Logger,
) *PersistenceService {
	return &PersistenceService{
		db:        db,
		matchRepo: matchRepo,
		incRepo:   incRepo,
		logger:    logger,
	}
}

func (s *PersistenceService) CreateIncident(ctx context.Context, opID string, inc models.Incident) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &live.TransportError{Op: "create incident", Err: err}
	}
	defer tx.Rollback()

	match, err := s.matchRepo.GetForUpdate(ctx, tx, inc.MatchID)
	if err != nil {
		return 0, s.classify("create incident", err)
	}
	if match.Phase != models.PhaseFirstHalf && match.Phase != models.PhaseSecondHalf {
		return 0, &live.StateError{Phase: match.Phase, Action: "record_incident"}
	}
	if inc.Kind.IsCard() {
		ejected, err := s.incRepo.ActiveEjectionExists(ctx, tx, inc.MatchID, inc.PlayerID)
		if err != nil {
			return 0, s.classify("create incident", err)
		}
		if ejected {
			return 0, &live.ConflictError{
				Reason:   "player already carries an active ejection",
				PlayerID: inc.PlayerID,
			}
		}
	}

	id, err := s.incRepo.Insert(ctx, tx, opID, &inc)
	if err != nil {
		return 0, s.classify("create incident", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, &live.TransportError{Op: "create incident", Err: err}
	}
	return id, nil
}

func (s *PersistenceService) DeleteIncident(ctx context.Context, opID string, matchID int, incidentID int64) error {
	if err := s.incRepo.Delete(ctx, s.db, matchID, incidentID); err != nil {
		return s.classify("delete incident", err)
	}
	return nil
}

func (s *PersistenceService) TransitionMatch(ctx context.Context, opID string, matchID int, action models.PhaseAction, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &live.TransportError{Op: "transition match", Err: err}
	}
	defer tx.Rollback()

	alreadyApplied, err := s.matchRepo.RecordOperation(ctx, tx, opID, matchID, action)
	if err != nil {
		return s.classify("transition match", err)
	}
	if alreadyApplied {
		// Повтор после таймаута: переход уже записан этой же операцией.
		return tx.Commit()
	}

	match, err := s.matchRepo.GetForUpdate(ctx, tx, matchID)
	if err != nil {
		return s.classify("transition match", err)
	}

	// Легальность перехода проверяется и на стороне записи: часы здесь
	// одноразовые, их состояние целиком из строки матча.
	clock := live.ClockFromMatch(match)
	if err := clock.Apply(action, at); err != nil {
		return err
	}

	if err := s.matchRepo.UpdatePhase(ctx, tx, matchID, clock.Phase(), clock.FirstHalfStart(), clock.SecondHalfStart()); err != nil {
		return s.classify("transition match", err)
	}
	if err := tx.Commit(); err != nil {
		return &live.TransportError{Op: "transition match", Err: err}
	}
	return nil
}

// classify сводит ошибки драйвера к таксономии консоли. Временные сбои
// становятся TransportError и будут повторены; доменные отказы уходят
// оператору сразу.
func (s *PersistenceService) classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMatchNotFound),
		errors.Is(err, repositories.ErrIncidentMatchInvalid):
		return &live.ValidationError{Reason: "unknown match"}
	case errors.Is(err, repositories.ErrIncidentPlayerInvalid):
		return &live.ValidationError{Reason: "unknown player"}
	case repositories.IsTransient(err):
		return &live.TransportError{Op: op, Err: err}
	default:
		s.logger.Error("unexpected persistence failure", slog.String("op", op), slog.Any("error", err))
		return &live.TransportError{Op: op, Err: fmt.Errorf("backend failure: %w", err)}
	}
}
