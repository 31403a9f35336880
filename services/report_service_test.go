package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ligasur/matchday/models"
	"github.com/ligasur/matchday/repositories"
	"github.com/ligasur/matchday/storage"
)

type fakeMatchRepo struct {
	match    *models.Match
	getCalls int32
}

func (f *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if f.match == nil || f.match.ID != id {
		return nil, repositories.ErrMatchNotFound
	}
	return f.match, nil
}

func (f *fakeMatchRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeMatchRepo) UpdatePhase(ctx context.Context, exec repositories.SQLExecutor, id int, phase models.Phase, firstHalfStart, secondHalfStart *time.Time) error {
	return nil
}

func (f *fakeMatchRepo) RecordOperation(ctx context.Context, exec repositories.SQLExecutor, opID string, matchID int, action models.PhaseAction) (bool, error) {
	return false, nil
}

type fakeIncidentRepo struct {
	incidents []models.Incident
}

func (f *fakeIncidentRepo) Insert(ctx context.Context, exec repositories.SQLExecutor, opID string, inc *models.Incident) (int64, error) {
	return 0, nil
}

func (f *fakeIncidentRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, matchID int, id int64) error {
	return nil
}

func (f *fakeIncidentRepo) ListByMatch(ctx context.Context, matchID int) ([]models.Incident, error) {
	return f.incidents, nil
}

func (f *fakeIncidentRepo) ActiveEjectionExists(ctx context.Context, exec repositories.SQLExecutor, matchID, playerID int) (bool, error) {
	return false, nil
}

type fakeUploader struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (f *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.key = key
	f.contentType = contentType
	f.body = body
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeUploader) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

func finishedMatch() *models.Match {
	return &models.Match{
		ID:             1,
		EditionID:      7,
		LocalTeamID:    14,
		VisitingTeamID: 15,
		Phase:          models.PhaseFinished,
	}
}

func storedIncidents() []models.Incident {
	return []models.Incident{
		{ID: 501, MatchID: 1, Kind: models.IncidentGoal, Minute: 10, Side: models.SideLocal, PlayerID: 10},
		// Автогол гостей идёт в счёт хозяев.
		{ID: 502, MatchID: 1, Kind: models.IncidentGoal, Minute: 33, Side: models.SideVisiting, PlayerID: 21, OwnGoal: true},
		{ID: 503, MatchID: 1, Kind: models.IncidentYellowCard, Minute: 40, Side: models.SideVisiting, PlayerID: 7},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReportServiceBuild(t *testing.T) {
	svc := NewReportService(
		&fakeMatchRepo{match: finishedMatch()},
		&fakeIncidentRepo{incidents: storedIncidents()},
		nil,
		discardLogger(),
	)

	report, err := svc.Build(context.Background(), 1)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if report.LocalScore != 2 || report.VisitingScore != 0 {
		t.Fatalf("report score = %d-%d, want 2-0", report.LocalScore, report.VisitingScore)
	}
	if len(report.Timeline) != 3 {
		t.Fatalf("timeline length = %d, want 3", len(report.Timeline))
	}

	// Сводки отсортированы по id игрока.
	for i := 1; i < len(report.Tallies); i++ {
		if report.Tallies[i-1].PlayerID >= report.Tallies[i].PlayerID {
			t.Fatalf("tallies are not sorted by player id: %+v", report.Tallies)
		}
	}
}

func TestReportServiceBuildRequiresFinishedMatch(t *testing.T) {
	match := finishedMatch()
	match.Phase = models.PhaseSecondHalf
	svc := NewReportService(&fakeMatchRepo{match: match}, &fakeIncidentRepo{}, nil, discardLogger())

	_, err := svc.Build(context.Background(), 1)
	if !errors.Is(err, ErrReportNotReady) {
		t.Fatalf("Build for live match: error = %v, want ErrReportNotReady", err)
	}
}

func TestReportServiceBuildUnknownMatch(t *testing.T) {
	svc := NewReportService(&fakeMatchRepo{}, &fakeIncidentRepo{}, nil, discardLogger())

	_, err := svc.Build(context.Background(), 404)
	if !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("Build for unknown match: error = %v, want ErrMatchNotFound", err)
	}
}

func TestReportServiceExport(t *testing.T) {
	uploader := &fakeUploader{}
	svc := NewReportService(
		&fakeMatchRepo{match: finishedMatch()},
		&fakeIncidentRepo{incidents: storedIncidents()},
		uploader,
		discardLogger(),
	)

	location, err := svc.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if uploader.key != "reports/edition-7/match-1.json" {
		t.Fatalf("export key = %q, want reports/edition-7/match-1.json", uploader.key)
	}
	if uploader.contentType != "application/json" {
		t.Fatalf("export content type = %q, want application/json", uploader.contentType)
	}
	if location != "https://cdn.example.com/"+uploader.key {
		t.Fatalf("export location = %q", location)
	}

	var report models.MatchReport
	if err := json.Unmarshal(uploader.body, &report); err != nil {
		t.Fatalf("exported payload is not valid JSON: %v", err)
	}
	if report.LocalScore != 2 || report.VisitingScore != 0 {
		t.Fatalf("exported score = %d-%d, want 2-0", report.LocalScore, report.VisitingScore)
	}
}

func TestReportServiceExportWithoutUploader(t *testing.T) {
	svc := NewReportService(
		&fakeMatchRepo{match: finishedMatch()},
		&fakeIncidentRepo{incidents: storedIncidents()},
		nil,
		discardLogger(),
	)

	_, err := svc.Export(context.Background(), 1)
	if !errors.Is(err, ErrExportUnavailable) {
		t.Fatalf("Export without uploader: error = %v, want ErrExportUnavailable", err)
	}
}
