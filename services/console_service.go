package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ligasur/matchday/live"
	"github.com/ligasur/matchday/models"
	"github.com/ligasur/matchday/repositories"
)

// ConsoleConfig — параметры консоли скорера.
type ConsoleConfig struct {
	EventualQuota int
	Reconciler    live.ReconcilerConfig
}

// ConsoleService управляет сессиями живых матчей: одна сессия на открытый
// матч, каждая — изолированный агрегат со своей горутиной. Межматчевых
// блокировок нет.
type ConsoleService struct {
	matchRepo repositories.MatchRepository
	incRepo   repositories.IncidentRepository
	rosters   *RosterService
	usage     live.UsageSource
	api       live.PersistenceAPI
	notifier  live.Notifier
	logger    *slog.Logger
	cfg       ConsoleConfig

	mu       sync.Mutex
	sessions map[int]*live.Session
}

func NewConsoleService(
	matchRepo repositories.MatchRepository,
	incRepo repositories.IncidentRepository,
	rosters *RosterService,
	usage live.UsageSource,
	api live.PersistenceAPI,
	notifier live.Notifier,
	logger *slog.Logger,
	cfg ConsoleConfig,
) *ConsoleService {
	return &ConsoleService{
		matchRepo: matchRepo,
		incRepo:   incRepo,
		rosters:   rosters,
		usage:     usage,
		api:       api,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		sessions:  make(map[int]*live.Session),
	}
}

// Open поднимает сессию матча: состояние часов из строки матча, журнал из
// сохранённых инцидентов, составы обеих сторон. Повторное открытие
// идемпотентно — скореру, переоткрывшему консоль, возвращается текущая
// сессия.
func (s *ConsoleService) Open(ctx context.Context, matchID int) (models.MatchSnapshot, error) {
	s.mu.Lock()
	if existing, ok := s.sessions[matchID]; ok {
		s.mu.Unlock()
		return existing.Snapshot(ctx)
	}
	s.mu.Unlock()

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return models.MatchSnapshot{}, ErrMatchNotFound
		}
		return models.MatchSnapshot{}, err
	}

	localRoster, err := s.rosters.Roster(ctx, match.LocalTeamID, match.EditionID)
	if err != nil {
		return models.MatchSnapshot{}, err
	}
	visitingRoster, err := s.rosters.Roster(ctx, match.VisitingTeamID, match.EditionID)
	if err != nil {
		return models.MatchSnapshot{}, err
	}

	stored, err := s.incRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return models.MatchSnapshot{}, err
	}

	session := live.NewSession(live.SessionConfig{
		Match: match,
		Rosters: map[models.Side]*models.Roster{
			models.SideLocal:    localRoster,
			models.SideVisiting: visitingRoster,
		},
		Provider:   &refreshingProvider{rosters: s.rosters},
		Policy:     live.NewEventualPolicy(s.cfg.EventualQuota, s.usage),
		API:        s.api,
		Reconciler: s.cfg.Reconciler,
		Notifier:   s.notifier,
		Logger:     s.logger.With(slog.Int("match_id", matchID)),
	})
	session.Restore(stored)

	s.mu.Lock()
	if racing, ok := s.sessions[matchID]; ok {
		// Другой запрос успел открыть сессию первым.
		s.mu.Unlock()
		return racing.Snapshot(ctx)
	}
	s.sessions[matchID] = session
	s.mu.Unlock()

	go session.Run()
	s.logger.Info("console session opened", slog.Int("match_id", matchID))
	return session.Snapshot(ctx)
}

func (s *ConsoleService) session(matchID int) (*live.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[matchID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *ConsoleService) RecordIncident(ctx context.Context, matchID int, input live.IncidentInput) (models.MatchSnapshot, error) {
	session, err := s.session(matchID)
	if err != nil {
		return models.MatchSnapshot{}, err
	}
	return session.RecordIncident(ctx, input)
}

func (s *ConsoleService) UndoIncident(ctx context.Context, matchID int, entryID string) (models.MatchSnapshot, error) {
	session, err := s.session(matchID)
	if err != nil {
		return models.MatchSnapshot{}, err
	}
	return session.UndoIncident(ctx, entryID)
}

func (s *ConsoleService) TransitionPhase(ctx context.Context, matchID int, action models.PhaseAction) (models.MatchSnapshot, error) {
	session, err := s.session(matchID)
	if err != nil {
		return models.MatchSnapshot{}, err
	}
	return session.TransitionPhase(ctx, action)
}

func (s *ConsoleService) Snapshot(ctx context.Context, matchID int) (models.MatchSnapshot, error) {
	session, err := s.session(matchID)
	if err != nil {
		return models.MatchSnapshot{}, err
	}
	return session.Snapshot(ctx)
}

// Close останавливает сессию матча. Незавершённые запросы не отменяются:
// идемпотентность по operation id исключает двойное применение при их
// довыполнении.
func (s *ConsoleService) Close(matchID int) error {
	s.mu.Lock()
	session, ok := s.sessions[matchID]
	if ok {
		delete(s.sessions, matchID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	s.logger.Info("console session closed", slog.Int("match_id", matchID))
	return nil
}

// CloseAll вызывается при остановке сервера.
func (s *ConsoleService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[int]*live.Session)
	s.mu.Unlock()
	for _, session := range sessions {
		session.Close()
	}
}

// refreshingProvider — провайдер составов для сессии: запрос из сессии
// всегда означает «в кэше игрока нет», поэтому читаем мимо TTL.
type refreshingProvider struct {
	rosters *RosterService
}

func (p *refreshingProvider) Roster(ctx context.Context, teamID, editionID int) (*models.Roster, error) {
	return p.rosters.Refresh(ctx, teamID, editionID)
}

// FanoutNotifier раздаёт события сессии нескольким потребителям (хаб,
// брокер ленты).
type FanoutNotifier []live.Notifier

func (f FanoutNotifier) Notify(ev live.Event) {
	for _, n := range f {
		n.Notify(ev)
	}
}
