package live

import (
	"errors"
	"testing"

	"github.com/ligasur/matchday/models"
)

func mustAppend(t *testing.T, l *Ledger, inc models.Incident) *models.Incident {
	t.Helper()
	stored, err := l.Append(inc)
	if err != nil {
		t.Fatalf("Append(%s, player %d) failed: %v", inc.Kind, inc.PlayerID, err)
	}
	return stored
}

func TestLedgerScoreWithOwnGoals(t *testing.T) {
	l := NewLedger(1, nil)

	mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 10, Minute: 5})
	mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideVisiting, PlayerID: 20, Minute: 12})
	// Автогол защитника гостей записывается за гостевую сторону, но идёт в
	// счёт хозяев.
	mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideVisiting, PlayerID: 21, Minute: 30, OwnGoal: true})

	if got := l.ScoreFor(models.SideLocal); got != 2 {
		t.Fatalf("ScoreFor(local) = %d, want 2", got)
	}
	if got := l.ScoreFor(models.SideVisiting); got != 1 {
		t.Fatalf("ScoreFor(visiting) = %d, want 1", got)
	}

	tally := l.TallyFor(21)
	if tally.Goals != 0 {
		t.Fatalf("own goal credited to scorer: goals = %d, want 0", tally.Goals)
	}
}

func TestLedgerValidation(t *testing.T) {
	tests := []struct {
		name string
		inc  models.Incident
	}{
		{
			name: "unknown kind",
			inc:  models.Incident{Kind: "corner", Side: models.SideLocal, PlayerID: 1, Minute: 1},
		},
		{
			name: "unknown side",
			inc:  models.Incident{Kind: models.IncidentGoal, Side: "neutral", PlayerID: 1, Minute: 1},
		},
		{
			name: "missing player",
			inc:  models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, Minute: 1},
		},
		{
			name: "negative minute",
			inc:  models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 1, Minute: -1},
		},
		{
			name: "penalty flag on a card",
			inc:  models.Incident{Kind: models.IncidentYellowCard, Side: models.SideLocal, PlayerID: 1, Minute: 1, Penalty: true},
		},
		{
			name: "penalty own goal",
			inc:  models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 1, Minute: 1, Penalty: true, OwnGoal: true},
		},
		{
			name: "assist without goal",
			inc:  models.Incident{Kind: models.IncidentAssist, Side: models.SideLocal, PlayerID: 1, Minute: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(1, nil)
			_, err := l.Append(tt.inc)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Append error = %v, want ValidationError", err)
			}
		})
	}
}

func TestLedgerAssistLinksGoal(t *testing.T) {
	l := NewLedger(1, nil)
	goal := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 10, Minute: 5})

	assist, err := l.Append(models.Incident{
		Kind:                models.IncidentAssist,
		Side:                models.SideLocal,
		PlayerID:            11,
		Minute:              5,
		LinkedProvisionalID: goal.ProvisionalID,
	})
	if err != nil {
		t.Fatalf("Append(assist) failed: %v", err)
	}
	if assist.LinkedProvisionalID != goal.ProvisionalID {
		t.Fatalf("assist link = %q, want %q", assist.LinkedProvisionalID, goal.ProvisionalID)
	}

	ownGoal := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideVisiting, PlayerID: 20, Minute: 8, OwnGoal: true})
	_, err = l.Append(models.Incident{
		Kind:                models.IncidentAssist,
		Side:                models.SideVisiting,
		PlayerID:            21,
		Minute:              8,
		LinkedProvisionalID: ownGoal.ProvisionalID,
	})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("assist on own goal: error = %v, want ValidationError", err)
	}
}

func TestLedgerSecondYellowBecomesEjection(t *testing.T) {
	l := NewLedger(1, nil)

	first := mustAppend(t, l, models.Incident{Kind: models.IncidentYellowCard, Side: models.SideVisiting, PlayerID: 7, Minute: 20})
	second := mustAppend(t, l, models.Incident{Kind: models.IncidentYellowCard, Side: models.SideVisiting, PlayerID: 7, Minute: 55})

	if second.Kind != models.IncidentDoubleYellow {
		t.Fatalf("second yellow stored as %s, want %s", second.Kind, models.IncidentDoubleYellow)
	}
	if second.LinkedProvisionalID != first.ProvisionalID {
		t.Fatalf("double yellow not linked to the first booking")
	}

	tally := l.TallyFor(7)
	if !tally.Ejected {
		t.Fatalf("tally after second yellow: Ejected = false, want true")
	}
	if tally.YellowCards != 2 {
		t.Fatalf("tally after second yellow: YellowCards = %d, want 2", tally.YellowCards)
	}

	// Любая следующая карточка для удалённого игрока конфликтует.
	_, err := l.Append(models.Incident{Kind: models.IncidentRedCard, Side: models.SideVisiting, PlayerID: 7, Minute: 60})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("card after ejection: error = %v, want ConflictError", err)
	}
	if conflictErr.PlayerID != 7 {
		t.Fatalf("conflict player = %d, want 7", conflictErr.PlayerID)
	}
}

func TestLedgerStandaloneDoubleYellowCountsTwo(t *testing.T) {
	l := NewLedger(1, nil)
	mustAppend(t, l, models.Incident{Kind: models.IncidentDoubleYellow, Side: models.SideLocal, PlayerID: 4, Minute: 70})

	tally := l.TallyFor(4)
	if tally.YellowCards != 2 || !tally.Ejected {
		t.Fatalf("standalone double yellow tally = %+v, want 2 yellows and ejection", tally)
	}
}

func TestLedgerRetractIdempotent(t *testing.T) {
	l := NewLedger(1, nil)
	goal := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 10, Minute: 5})

	if _, ok := l.Retract(goal.ProvisionalID); !ok {
		t.Fatalf("Retract of present entry returned ok=false")
	}
	if _, ok := l.Retract(goal.ProvisionalID); ok {
		t.Fatalf("second Retract of same entry returned ok=true")
	}
	if _, ok := l.Retract("never-existed"); ok {
		t.Fatalf("Retract of unknown id returned ok=true")
	}
	if got := l.ScoreFor(models.SideLocal); got != 0 {
		t.Fatalf("score after retract = %d, want 0", got)
	}
}

func TestLedgerRetractReappendTallyEquivalence(t *testing.T) {
	l := NewLedger(1, nil)
	mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 10, Minute: 5})
	yellow := mustAppend(t, l, models.Incident{Kind: models.IncidentYellowCard, Side: models.SideLocal, PlayerID: 10, Minute: 15})

	before := l.TallyFor(10)

	l.Retract(yellow.ProvisionalID)
	mustAppend(t, l, models.Incident{Kind: models.IncidentYellowCard, Side: models.SideLocal, PlayerID: 10, Minute: 15})

	after := l.TallyFor(10)
	if before != after {
		t.Fatalf("tally after retract+reappend = %+v, want %+v", after, before)
	}
}

func TestLedgerOrderingStable(t *testing.T) {
	l := NewLedger(1, nil)

	// Вставка не по хронологии: записи одной минуты сохраняют порядок
	// вставки, остальные сортируются по минуте.
	a := mustAppend(t, l, models.Incident{Kind: models.IncidentYellowCard, Side: models.SideLocal, PlayerID: 1, Minute: 30})
	b := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 2, Minute: 10})
	c := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideVisiting, PlayerID: 3, Minute: 30})
	d := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 4, Minute: 10})

	want := []string{b.ProvisionalID, d.ProvisionalID, a.ProvisionalID, c.ProvisionalID}
	got := l.Incidents()
	if len(got) != len(want) {
		t.Fatalf("timeline length = %d, want %d", len(got), len(want))
	}
	for i, inc := range got {
		if inc.ProvisionalID != want[i] {
			t.Fatalf("timeline[%d] = %q, want %q", i, inc.ProvisionalID, want[i])
		}
	}
}

func TestLedgerFreeze(t *testing.T) {
	l := NewLedger(1, nil)
	goal := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 10, Minute: 5})

	l.Freeze()

	_, err := l.Append(models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 11, Minute: 40})
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("append on frozen ledger: error = %v, want StateError", err)
	}

	// Ретракция корректировок остаётся доступной после финального свистка.
	if _, ok := l.Retract(goal.ProvisionalID); !ok {
		t.Fatalf("retract on frozen ledger failed")
	}
}

func TestLedgerConfirmRekeysEntry(t *testing.T) {
	l := NewLedger(1, nil)
	goal := mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 10, Minute: 5})

	if !l.Confirm(goal.ProvisionalID, 4242) {
		t.Fatalf("Confirm returned false for present entry")
	}
	stored, ok := l.Get(goal.ProvisionalID)
	if !ok || stored.ID != 4242 {
		t.Fatalf("confirmed entry id = %v, want 4242", stored)
	}
	if l.Confirm("never-existed", 1) {
		t.Fatalf("Confirm returned true for unknown id")
	}
}

func TestLedgerEligibilityHook(t *testing.T) {
	denied := &ValidationError{Reason: "player 99 is not on the visiting roster", PlayerID: 99}
	l := NewLedger(1, func(playerID int, side models.Side) error {
		if playerID == 99 {
			return denied
		}
		return nil
	})

	mustAppend(t, l, models.Incident{Kind: models.IncidentGoal, Side: models.SideLocal, PlayerID: 10, Minute: 5})

	_, err := l.Append(models.Incident{Kind: models.IncidentGoal, Side: models.SideVisiting, PlayerID: 99, Minute: 6})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.PlayerID != 99 {
		t.Fatalf("eligibility rejection = %v, want the hook's ValidationError", err)
	}
}
