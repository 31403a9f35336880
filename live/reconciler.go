package live

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ligasur/matchday/models"
)

// PersistenceAPI — граница с бэкендом записи. Все вызовы идемпотентны по
// клиентскому operation id: повтор после таймаута не применится дважды.
type PersistenceAPI interface {
	CreateIncident(ctx context.Context, opID string, inc models.Incident) (int64, error)
	DeleteIncident(ctx context.Context, opID string, matchID int, incidentID int64) error
	TransitionMatch(ctx context.Context, opID string, matchID int, action models.PhaseAction, at time.Time) error
}

type opKind int

const (
	opAppend opKind = iota
	opUndo
	opPhase
)

// resolution — результат сетевой операции, возвращаемый в цикл сессии.
type resolution struct {
	opID    string
	kind    opKind
	targets []string

	provisionalID string
	confirmedID   int64
	incident      models.Incident // для отката undo
	action        models.PhaseAction
	prevClock     clockState // для отката перехода фазы
	prevFrozen    bool

	err error
}

// ReconcilerConfig ограничивает повторы: ни одна операция не повторяется
// бесконечно, после исчерпания попыток сбой отдаётся оператору.
type ReconcilerConfig struct {
	Attempts       int
	Backoff        time.Duration
	RequestTimeout time.Duration
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 250 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	return c
}

// Reconciler сводит оптимистичное локальное состояние с бэкендом записи.
// Владеет двунаправленной таблицей предварительный↔подтверждённый id; журнал
// этой таблицы не видит. Все методы, кроме порождённых горутин запросов,
// вызываются только из цикла сессии, поэтому блокировок нет.
type Reconciler struct {
	api     PersistenceAPI
	cfg     ReconcilerConfig
	results chan resolution

	inFlight        map[string]string // target key -> operation id
	provToConfirmed map[string]int64
	confirmedToProv map[int64]string
}

func NewReconciler(api PersistenceAPI, cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		api:             api,
		cfg:             cfg.withDefaults(),
		results:         make(chan resolution, 32),
		inFlight:        make(map[string]string),
		provToConfirmed: make(map[string]int64),
		confirmedToProv: make(map[int64]string),
	}
}

// Results — канал, который цикл сессии слушает наряду с интентами.
func (r *Reconciler) Results() <-chan resolution { return r.results }

// Busy сообщает, ждёт ли цель незавершённую операцию. Вторая мутация той же
// цели отклоняется локально, не отправляясь в сеть.
func (r *Reconciler) Busy(targets ...string) bool {
	for _, t := range targets {
		if _, ok := r.inFlight[t]; ok {
			return true
		}
	}
	return false
}

// Seed регистрирует уже подтверждённую запись (восстановление сессии из
// сохранённого журнала).
func (r *Reconciler) Seed(provisionalID string, confirmedID int64) {
	r.provToConfirmed[provisionalID] = confirmedID
	r.confirmedToProv[confirmedID] = provisionalID
}

func (r *Reconciler) ConfirmedID(provisionalID string) (int64, bool) {
	id, ok := r.provToConfirmed[provisionalID]
	return id, ok
}

func (r *Reconciler) ProvisionalID(confirmedID int64) (string, bool) {
	p, ok := r.confirmedToProv[confirmedID]
	return p, ok
}

// BeginAppend запускает сохранение оптимистично добавленного инцидента.
// Занимает и игрока, и саму запись: undo неподтверждённой записи ждёт.
func (r *Reconciler) BeginAppend(inc models.Incident, targets ...string) {
	opID := uuid.NewString()
	for _, t := range targets {
		r.inFlight[t] = opID
	}
	go func() {
		id, err := r.persistIncident(opID, inc)
		r.results <- resolution{
			opID:          opID,
			kind:          opAppend,
			targets:       targets,
			provisionalID: inc.ProvisionalID,
			confirmedID:   id,
			incident:      inc,
			err:           err,
		}
	}()
}

// BeginUndo запускает удаление подтверждённой записи. Исходный инцидент
// уезжает в resolution: откат ретракции — повторное добавление.
func (r *Reconciler) BeginUndo(inc models.Incident, confirmedID int64, targets ...string) {
	opID := uuid.NewString()
	for _, t := range targets {
		r.inFlight[t] = opID
	}
	go func() {
		err := r.do(opID, func(ctx context.Context) error {
			return r.api.DeleteIncident(ctx, opID, inc.MatchID, confirmedID)
		})
		r.results <- resolution{
			opID:          opID,
			kind:          opUndo,
			targets:       targets,
			provisionalID: inc.ProvisionalID,
			confirmedID:   confirmedID,
			incident:      inc,
			err:           err,
		}
	}()
}

// BeginPhase запускает сохранение перехода фазы; prev используется для
// точного отката, если сервер переход отверг.
func (r *Reconciler) BeginPhase(matchID int, action models.PhaseAction, at time.Time, prev clockState, prevFrozen bool, targets ...string) {
	opID := uuid.NewString()
	for _, t := range targets {
		r.inFlight[t] = opID
	}
	go func() {
		err := r.do(opID, func(ctx context.Context) error {
			return r.api.TransitionMatch(ctx, opID, matchID, action, at)
		})
		r.results <- resolution{
			opID:       opID,
			kind:       opPhase,
			targets:    targets,
			action:     action,
			prevClock:  prev,
			prevFrozen: prevFrozen,
			err:        err,
		}
	}()
}

// resolve снимает in-flight метки и при успехе добавляет отображение id.
// Вызывается из цикла сессии до обработки результата.
func (r *Reconciler) resolve(res resolution) {
	for _, t := range res.targets {
		if r.inFlight[t] == res.opID {
			delete(r.inFlight, t)
		}
	}
	if res.err == nil && res.kind == opAppend {
		r.provToConfirmed[res.provisionalID] = res.confirmedID
		r.confirmedToProv[res.confirmedID] = res.provisionalID
	}
	if res.err == nil && res.kind == opUndo {
		delete(r.provToConfirmed, res.provisionalID)
		delete(r.confirmedToProv, res.confirmedID)
	}
}

func (r *Reconciler) persistIncident(opID string, inc models.Incident) (int64, error) {
	var id int64
	err := r.do(opID, func(ctx context.Context) error {
		var callErr error
		id, callErr = r.api.CreateIncident(ctx, opID, inc)
		return callErr
	})
	return id, err
}

// do выполняет запрос с ограниченным числом попыток и экспоненциальной
// задержкой. Повторяется только TransportError; отказы по валидации,
// конфликту и фазе возвращаются сразу.
func (r *Reconciler) do(opID string, fn func(ctx context.Context) error) error {
	var err error
	delay := r.cfg.Backoff
	for attempt := 0; attempt < r.cfg.Attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RequestTimeout)
		err = fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		var te *TransportError
		if !errors.As(err, &te) {
			return err
		}
	}
	return err
}

// Ключи целей для сериализации конкурирующих операций.
func playerTarget(playerID int) string        { return "player:" + strconv.Itoa(playerID) }
func entryTarget(provisionalID string) string { return "entry:" + provisionalID }

const phaseTarget = "phase"
