package live

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ligasur/matchday/models"
)

// RosterProvider отдаёт допущенных игроков стороны. Сессия считает его
// read-only входом и перечитывает состав перед инцидентом с незнакомым
// игроком.
type RosterProvider interface {
	Roster(ctx context.Context, teamID, editionID int) (*models.Roster, error)
}

// IncidentInput — интент оператора «зафиксировать событие». Минута вводится
// оператором; часы на неё не влияют.
type IncidentInput struct {
	Kind                models.IncidentKind `json:"kind"`
	Minute              int                 `json:"minute"`
	Side                models.Side         `json:"side"`
	PlayerID            int                 `json:"player_id"`
	Penalty             bool                `json:"penalty"`
	OwnGoal             bool                `json:"own_goal"`
	LinkedProvisionalID string              `json:"linked_provisional_id,omitempty"`
}

// Session — авторитетный агрегат одного открытого матча: часы и журнал за
// единой поверхностью мутаций. Всё состояние принадлежит горутине Run;
// снаружи видны только интенты и неизменяемые снапшоты — никакого общего
// мутабельного состояния.
type Session struct {
	match    *models.Match
	clock    *Clock
	ledger   *Ledger
	policy   *EventualPolicy
	rec      *Reconciler
	rosters  map[models.Side]*models.Roster
	provider RosterProvider
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	intents   chan intent
	closed    chan struct{}
	closeOnce sync.Once
}

// SessionConfig собирает зависимости сессии.
type SessionConfig struct {
	Match      *models.Match
	Rosters    map[models.Side]*models.Roster
	Provider   RosterProvider
	Policy     *EventualPolicy
	API        PersistenceAPI
	Reconciler ReconcilerConfig
	Notifier   Notifier
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		match:    cfg.Match,
		clock:    ClockFromMatch(cfg.Match),
		policy:   cfg.Policy,
		rec:      NewReconciler(cfg.API, cfg.Reconciler),
		rosters:  cfg.Rosters,
		provider: cfg.Provider,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		now:      cfg.Now,
		intents:  make(chan intent),
		closed:   make(chan struct{}),
	}
	if s.rosters == nil {
		s.rosters = make(map[models.Side]*models.Roster)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(Event) {})
	}
	s.ledger = NewLedger(cfg.Match.ID, s.rosterEligibility)
	if s.clock.Phase() == models.PhaseFinished {
		s.ledger.Freeze()
	}
	return s
}

// Restore загружает сохранённые инциденты при открытии консоли: каждому
// присваивается предварительный id и сразу регистрируется подтверждённый.
// Вызывается до Run.
func (s *Session) Restore(incidents []models.Incident) {
	frozen := s.ledger.Frozen()
	s.ledger.Unfreeze()
	for _, inc := range incidents {
		inc.ProvisionalID = ""
		stored, err := s.ledger.Append(inc)
		if err != nil {
			s.logger.Warn("skipping stored incident on restore",
				slog.Int64("incident_id", inc.ID), slog.Any("error", err))
			continue
		}
		s.ledger.Confirm(stored.ProvisionalID, inc.ID)
		s.rec.Seed(stored.ProvisionalID, inc.ID)
	}
	if frozen {
		s.ledger.Freeze()
	}
}

type intentKind int

const (
	intentRecord intentKind = iota
	intentUndo
	intentTransition
	intentSnapshot
)

type intent struct {
	kind    intentKind
	ctx     context.Context
	input   IncidentInput
	entryID string
	action  models.PhaseAction
	reply   chan intentResult
}

type intentResult struct {
	snap models.MatchSnapshot
	err  error
}

// Run — цикл сессии; единственная горутина, которая трогает часы, журнал и
// реконсилиатор. Запускается менеджером консоли.
func (s *Session) Run() {
	for {
		select {
		case in := <-s.intents:
			s.handle(in)
		case res := <-s.rec.Results():
			s.handleResolution(res)
		case <-s.closed:
			return
		}
	}
}

// Close останавливает цикл. Уже отправленные сетевые запросы не отменяются:
// они довыполняются против хранилища записи, идемпотентность по operation id
// исключает двойное применение.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Session) dispatch(ctx context.Context, in intent) (models.MatchSnapshot, error) {
	in.ctx = ctx
	in.reply = make(chan intentResult, 1)
	select {
	case s.intents <- in:
	case <-ctx.Done():
		return models.MatchSnapshot{}, ctx.Err()
	case <-s.closed:
		return models.MatchSnapshot{}, errors.New("match session is closed")
	}
	select {
	case res := <-in.reply:
		return res.snap, res.err
	case <-ctx.Done():
		return models.MatchSnapshot{}, ctx.Err()
	}
}

// RecordIncident применяет инцидент оптимистично и запускает сохранение.
// Возвращает снапшот с предварительным id записи либо типизированный отказ.
func (s *Session) RecordIncident(ctx context.Context, input IncidentInput) (models.MatchSnapshot, error) {
	return s.dispatch(ctx, intent{kind: intentRecord, input: input})
}

// UndoIncident ретрагирует запись. Разрешён в любой фазе, включая FINISHED:
// корректировки должны оставаться возможными после матча.
func (s *Session) UndoIncident(ctx context.Context, entryID string) (models.MatchSnapshot, error) {
	return s.dispatch(ctx, intent{kind: intentUndo, entryID: entryID})
}

// TransitionPhase выполняет переход часов по действию оператора.
func (s *Session) TransitionPhase(ctx context.Context, action models.PhaseAction) (models.MatchSnapshot, error) {
	return s.dispatch(ctx, intent{kind: intentTransition, action: action})
}

// Snapshot возвращает текущий неизменяемый срез состояния.
func (s *Session) Snapshot(ctx context.Context) (models.MatchSnapshot, error) {
	return s.dispatch(ctx, intent{kind: intentSnapshot})
}

func (s *Session) handle(in intent) {
	var res intentResult
	switch in.kind {
	case intentRecord:
		res = s.handleRecord(in.ctx, in.input)
	case intentUndo:
		res = s.handleUndo(in.entryID)
	case intentTransition:
		res = s.handleTransition(in.action)
	case intentSnapshot:
		res = intentResult{snap: s.buildSnapshot()}
	}
	in.reply <- res
}

func (s *Session) handleRecord(ctx context.Context, input IncidentInput) intentResult {
	if !s.clock.InPlay() {
		return intentResult{err: &StateError{Phase: s.clock.Phase(), Action: "record_incident"}}
	}

	entry, err := s.eligibleEntry(ctx, input.Side, input.PlayerID)
	if err != nil {
		return intentResult{err: err}
	}
	if entry.Eventual {
		teamID := s.teamForSide(input.Side)
		if err := s.policy.CanUse(ctx, input.PlayerID, teamID, s.match.EditionID, true); err != nil {
			return intentResult{err: err}
		}
	}

	target := playerTarget(input.PlayerID)
	if s.rec.Busy(target) {
		return intentResult{err: &ConflictError{Reason: "operation in progress", PlayerID: input.PlayerID}}
	}

	// Ссылка ассиста может прийти и серверным id гола.
	linkedProv := s.resolveEntryID(input.LinkedProvisionalID)
	var linkedID int64
	if id, ok := s.rec.ConfirmedID(linkedProv); ok {
		linkedID = id
	}

	stored, err := s.ledger.Append(models.Incident{
		Kind:                input.Kind,
		Minute:              input.Minute,
		Side:                input.Side,
		PlayerID:            input.PlayerID,
		Penalty:             input.Penalty,
		OwnGoal:             input.OwnGoal,
		LinkedProvisionalID: linkedProv,
		LinkedID:            linkedID,
		CreatedAt:           s.now(),
	})
	if err != nil {
		return intentResult{err: err}
	}

	s.rec.BeginAppend(*stored, target, entryTarget(stored.ProvisionalID))
	s.logger.Info("incident recorded",
		slog.Int("match_id", s.match.ID),
		slog.String("kind", string(stored.Kind)),
		slog.Int("player_id", stored.PlayerID),
		slog.Int("minute", stored.Minute))

	snap := s.buildSnapshot()
	s.notify(EventSnapshot, snap)
	return intentResult{snap: snap}
}

func (s *Session) handleUndo(entryID string) intentResult {
	prov := s.resolveEntryID(entryID)
	inc, ok := s.ledger.Get(prov)
	if !ok {
		// Ретракция отсутствующей записи — no-op, не ошибка.
		return intentResult{snap: s.buildSnapshot()}
	}

	target := entryTarget(prov)
	if s.rec.Busy(target) {
		return intentResult{err: &ConflictError{Reason: "operation in progress", PlayerID: inc.PlayerID}}
	}

	removed, _ := s.ledger.Retract(prov)
	s.logger.Info("incident undone",
		slog.Int("match_id", s.match.ID),
		slog.String("provisional_id", prov),
		slog.Int("player_id", removed.PlayerID))

	confirmedID, confirmed := s.rec.ConfirmedID(prov)
	if confirmed {
		s.rec.BeginUndo(removed, confirmedID, target)
	}

	// Корректировка публикуется, а не замалчивается: аудит видит undo.
	s.notify(EventIncidentUndone, IncidentUndonePayload{
		ProvisionalID: prov,
		ID:            confirmedID,
		PlayerID:      removed.PlayerID,
	})
	snap := s.buildSnapshot()
	s.notify(EventSnapshot, snap)
	return intentResult{snap: snap}
}

func (s *Session) handleTransition(action models.PhaseAction) intentResult {
	if s.rec.Busy(phaseTarget) {
		return intentResult{err: &ConflictError{Reason: "operation in progress"}}
	}

	prev := s.clock.capture()
	prevFrozen := s.ledger.Frozen()
	at := s.now()
	if err := s.clock.Apply(action, at); err != nil {
		return intentResult{err: err}
	}
	if s.clock.Phase() == models.PhaseFinished {
		s.ledger.Freeze()
	}
	s.syncMatchFromClock()

	s.rec.BeginPhase(s.match.ID, action, at, prev, prevFrozen, phaseTarget)
	s.logger.Info("phase transition",
		slog.Int("match_id", s.match.ID),
		slog.String("action", string(action)),
		slog.String("phase", s.clock.Phase().String()))

	s.notify(EventPhaseChanged, PhaseChangedPayload{Phase: s.clock.Phase()})
	snap := s.buildSnapshot()
	s.notify(EventSnapshot, snap)
	return intentResult{snap: snap}
}

func (s *Session) handleResolution(res resolution) {
	s.rec.resolve(res)
	if res.err == nil {
		if res.kind == opAppend {
			s.ledger.Confirm(res.provisionalID, res.confirmedID)
			// Успех молчалив: клиент лишь перепривязывает id, без перерисовки.
			s.notify(EventIncidentConfirmed, IncidentConfirmedPayload{
				ProvisionalID: res.provisionalID,
				ID:            res.confirmedID,
			})
		}
		return
	}

	// Отказ: откатываем оптимистичную мутацию ровно так, как она была
	// применена, и называем оператору неудавшееся действие.
	switch res.kind {
	case opAppend:
		s.ledger.Retract(res.provisionalID)
		s.logger.Warn("incident rejected by backend, rolled back",
			slog.Int("match_id", s.match.ID),
			slog.Int("player_id", res.incident.PlayerID),
			slog.Any("error", res.err))
		s.notify(EventOperationFailed, OperationFailedPayload{
			Action:        "record_incident",
			ProvisionalID: res.provisionalID,
			PlayerID:      res.incident.PlayerID,
			Reason:        res.err.Error(),
		})
	case opUndo:
		s.ledger.reinstate(res.incident)
		s.logger.Warn("undo rejected by backend, incident reinstated",
			slog.Int("match_id", s.match.ID),
			slog.String("provisional_id", res.provisionalID),
			slog.Any("error", res.err))
		s.notify(EventOperationFailed, OperationFailedPayload{
			Action:        "undo_incident",
			ProvisionalID: res.provisionalID,
			PlayerID:      res.incident.PlayerID,
			Reason:        res.err.Error(),
		})
	case opPhase:
		s.clock.restore(res.prevClock)
		if res.prevFrozen {
			s.ledger.Freeze()
		} else {
			s.ledger.Unfreeze()
		}
		s.syncMatchFromClock()
		s.logger.Warn("phase transition rejected by backend, rolled back",
			slog.Int("match_id", s.match.ID),
			slog.String("action", string(res.action)),
			slog.Any("error", res.err))
		s.notify(EventOperationFailed, OperationFailedPayload{
			Action: string(res.action),
			Reason: res.err.Error(),
		})
	}
	s.notify(EventSnapshot, s.buildSnapshot())
}

// eligibleEntry ищет игрока в составе стороны, при неизвестном игроке один
// раз перечитывает состав у провайдера.
func (s *Session) eligibleEntry(ctx context.Context, side models.Side, playerID int) (*models.RosterEntry, error) {
	roster := s.rosters[side]
	if roster != nil {
		if entry, ok := roster.Entry(playerID); ok {
			return entry, nil
		}
	}
	if s.provider != nil {
		fresh, err := s.provider.Roster(ctx, s.teamForSide(side), s.match.EditionID)
		if err != nil {
			return nil, &TransportError{Op: "roster refresh", Err: err}
		}
		s.rosters[side] = fresh
		if entry, ok := fresh.Entry(playerID); ok {
			return entry, nil
		}
	}
	return nil, &ValidationError{
		Reason:   "player is not on the roster and not an approved eventual",
		PlayerID: playerID,
	}
}

// rosterEligibility — проверка журнала: игрок должен числиться в составе
// одной из сторон. Политика eventual применяется раньше, в handleRecord.
func (s *Session) rosterEligibility(playerID int, side models.Side) error {
	roster := s.rosters[side]
	if roster == nil {
		return nil // состав не загружен: проверку уже сделал eligibleEntry
	}
	if _, ok := roster.Entry(playerID); !ok {
		return &ValidationError{
			Reason:   "player is not on the roster and not an approved eventual",
			PlayerID: playerID,
		}
	}
	return nil
}

func (s *Session) resolveEntryID(entryID string) string {
	if n, err := strconv.ParseInt(entryID, 10, 64); err == nil {
		if prov, ok := s.rec.ProvisionalID(n); ok {
			return prov
		}
	}
	return entryID
}

func (s *Session) teamForSide(side models.Side) int {
	if side == models.SideLocal {
		return s.match.LocalTeamID
	}
	return s.match.VisitingTeamID
}

func (s *Session) syncMatchFromClock() {
	s.match.Phase = s.clock.Phase()
	s.match.FirstHalfStart = s.clock.FirstHalfStart()
	s.match.SecondHalfStart = s.clock.SecondHalfStart()
}

func (s *Session) buildSnapshot() models.MatchSnapshot {
	return models.MatchSnapshot{
		MatchID:        s.match.ID,
		Phase:          s.clock.Phase(),
		ElapsedMinutes: s.clock.ElapsedMinutes(s.now()),
		LocalScore:     s.ledger.ScoreFor(models.SideLocal),
		VisitingScore:  s.ledger.ScoreFor(models.SideVisiting),
		Timeline:       s.ledger.Incidents(),
		Tallies:        s.ledger.Tallies(),
	}
}

func (s *Session) notify(t EventType, payload interface{}) {
	s.notifier.Notify(Event{Type: t, MatchID: s.match.ID, Payload: payload})
}

// MatchID — идентификатор матча сессии; безопасно без обращения к циклу.
func (s *Session) MatchID() int { return s.match.ID }
