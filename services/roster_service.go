package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ligasur/matchday/models"
	"github.com/ligasur/matchday/repositories"
)

const rosterCacheTTL = 2 * time.Minute

// RosterService — провайдер составов для консоли. Конкурентные обновления
// одного состава сливаются через singleflight: десять инцидентов подряд с
// незнакомыми игроками не означают десять запросов к базе.
type RosterService struct {
	repo  repositories.RosterRepository
	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cachedRoster
}

type cachedRoster struct {
	roster    *models.Roster
	fetchedAt time.Time
}

func NewRosterService(repo repositories.RosterRepository) *RosterService {
	return &RosterService{
		repo:  repo,
		cache: make(map[string]cachedRoster),
	}
}

// Roster возвращает состав команды в эдишене, при протухшем кэше перечитывая
// его из хранилища.
func (s *RosterService) Roster(ctx context.Context, teamID, editionID int) (*models.Roster, error) {
	key := fmt.Sprintf("%d:%d", teamID, editionID)

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < rosterCacheTTL {
		return cached.roster, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		entries, err := s.repo.ListByTeamEdition(ctx, teamID, editionID)
		if err != nil {
			return nil, err
		}
		roster := &models.Roster{TeamID: teamID, EditionID: editionID, Entries: entries}
		s.mu.Lock()
		s.cache[key] = cachedRoster{roster: roster, fetchedAt: time.Now()}
		s.mu.Unlock()
		return roster, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for team %d edition %d: %w", teamID, editionID, err)
	}
	return v.(*models.Roster), nil
}

// Refresh принудительно перечитывает состав, минуя TTL. Консоль зовёт его,
// встретив игрока, которого нет в загруженном составе.
func (s *RosterService) Refresh(ctx context.Context, teamID, editionID int) (*models.Roster, error) {
	s.Invalidate(teamID, editionID)
	return s.Roster(ctx, teamID, editionID)
}

// Invalidate сбрасывает кэш состава (например, после допуска нового
// eventual-игрока в админке).
func (s *RosterService) Invalidate(teamID, editionID int) {
	key := fmt.Sprintf("%d:%d", teamID, editionID)
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}
