package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ligasur/matchday/live"
	"github.com/ligasur/matchday/models"
	"github.com/ligasur/matchday/repositories"
	"github.com/ligasur/matchday/storage"
)

// ReportService строит отчёт завершённого матча из журнала инцидентов и,
// при настроенном хранилище, выгружает его JSON в объектное хранилище.
type ReportService struct {
	matchRepo repositories.MatchRepository
	incRepo   repositories.IncidentRepository
	uploader  storage.FileUploader // nil, если экспорт не настроен
	logger    *slog.Logger
}

func NewReportService(
	matchRepo repositories.MatchRepository,
	incRepo repositories.IncidentRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		matchRepo: matchRepo,
		incRepo:   incRepo,
		uploader:  uploader,
		logger:    logger,
	}
}

// Build собирает отчёт. Доступен только для завершённых матчей: до FINISHED
// журнал ещё мутируется консолью.
func (s *ReportService) Build(ctx context.Context, matchID int) (*models.MatchReport, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.Phase != models.PhaseFinished {
		return nil, ErrReportNotReady
	}

	stored, err := s.incRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	// Счёт и сводки выводятся тем же сворачиванием журнала, что и в живой
	// консоли: одна семантика, один источник истины.
	ledger := live.NewLedger(matchID, nil)
	for _, inc := range stored {
		entry, appendErr := ledger.Append(inc)
		if appendErr != nil {
			return nil, fmt.Errorf("stored incident %d is inconsistent: %w", inc.ID, appendErr)
		}
		ledger.Confirm(entry.ProvisionalID, inc.ID)
	}

	tallyMap := ledger.Tallies()
	tallies := make([]models.PlayerMatchTally, 0, len(tallyMap))
	for _, t := range tallyMap {
		tallies = append(tallies, t)
	}
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].PlayerID < tallies[j].PlayerID })

	return &models.MatchReport{
		Match:         match,
		LocalScore:    ledger.ScoreFor(models.SideLocal),
		VisitingScore: ledger.ScoreFor(models.SideVisiting),
		Timeline:      ledger.Incidents(),
		Tallies:       tallies,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// Export выгружает отчёт в объектное хранилище и возвращает публичный URL.
func (s *ReportService) Export(ctx context.Context, matchID int) (string, error) {
	if s.uploader == nil {
		return "", ErrExportUnavailable
	}

	report, err := s.Build(ctx, matchID)
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report for match %d: %w", matchID, err)
	}

	key := fmt.Sprintf("reports/edition-%d/match-%d.json", report.Match.EditionID, matchID)
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to export report for match %d: %w", matchID, err)
	}

	s.logger.Info("match report exported",
		slog.Int("match_id", matchID),
		slog.String("key", result.Key))
	return result.Location, nil
}
