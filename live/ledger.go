package live

import (
	"sort"

	"github.com/google/uuid"
	"github.com/ligasur/matchday/models"
)

// EligibilityFunc проверяет, может ли игрок фигурировать в инциденте за
// указанную сторону. Подставляется state machine (состав + политика
// eventual); nil означает «все допущены» и используется только в тестах.
type EligibilityFunc func(playerID int, side models.Side) error

// Ledger — журнал инцидентов одного матча: единственный источник истины для
// счёта и дисциплинарного состояния. Записи добавляются оптимистично с
// предварительным id и позже подтверждаются серверным.
//
// Ledger не потокобезопасен: им владеет цикл сессии.
type Ledger struct {
	matchID   int
	entries   []models.Incident
	seqs      map[string]uint64 // provisional id -> insertion sequence
	nextSeq   uint64
	frozen    bool
	eligifunc EligibilityFunc
}

func NewLedger(matchID int, eligibility EligibilityFunc) *Ledger {
	return &Ledger{
		matchID:   matchID,
		seqs:      make(map[string]uint64),
		eligifunc: eligibility,
	}
}

// Freeze делает журнал доступным только для чтения (добавление запрещено,
// ретракция корректировок остаётся возможной).
func (l *Ledger) Freeze()   { l.frozen = true }
func (l *Ledger) Unfreeze() { l.frozen = false }
func (l *Ledger) Frozen() bool { return l.frozen }

func (l *Ledger) Len() int { return len(l.entries) }

// Append валидирует инцидент, присваивает предварительный id и порядковый
// номер и вставляет запись в позицию, определяемую (минута, номер вставки).
func (l *Ledger) Append(inc models.Incident) (*models.Incident, error) {
	if l.frozen {
		return nil, &StateError{Phase: models.PhaseFinished, Action: "append"}
	}
	if err := l.validate(&inc); err != nil {
		return nil, err
	}

	// Вторая жёлтая того же игрока превращается во вторую жёлтую с удалением.
	// Ссылка на первую жёлтую сохраняется, чтобы сводка не считала её дважды.
	if inc.Kind == models.IncidentYellowCard {
		if prior := l.activeYellow(inc.PlayerID); prior != nil {
			inc.Kind = models.IncidentDoubleYellow
			inc.LinkedProvisionalID = prior.ProvisionalID
			inc.LinkedID = prior.ID
		}
	}

	inc.MatchID = l.matchID
	if inc.ProvisionalID == "" {
		inc.ProvisionalID = uuid.NewString()
	}

	seq := l.nextSeq
	l.nextSeq++
	l.seqs[inc.ProvisionalID] = seq

	l.entries = append(l.entries, inc)
	// Стабильный порядок: минута, затем номер вставки. Два клиента,
	// воспроизводящие один и тот же набор, отрисуют идентичную ленту.
	sort.Slice(l.entries, func(i, j int) bool {
		a, b := l.entries[i], l.entries[j]
		if a.Minute != b.Minute {
			return a.Minute < b.Minute
		}
		return l.seqs[a.ProvisionalID] < l.seqs[b.ProvisionalID]
	})

	stored, _ := l.Get(inc.ProvisionalID)
	return stored, nil
}

func (l *Ledger) validate(inc *models.Incident) error {
	if !inc.Kind.Valid() {
		return &ValidationError{Reason: "unknown incident kind " + string(inc.Kind), PlayerID: inc.PlayerID}
	}
	if !inc.Side.Valid() {
		return &ValidationError{Reason: "unknown side " + string(inc.Side), PlayerID: inc.PlayerID}
	}
	if inc.PlayerID <= 0 {
		return &ValidationError{Reason: "incident requires a player"}
	}
	if inc.Minute < 0 {
		return &ValidationError{Reason: "minute must not be negative", PlayerID: inc.PlayerID}
	}
	if inc.Kind != models.IncidentGoal && (inc.Penalty || inc.OwnGoal) {
		return &ValidationError{Reason: "penalty and own-goal flags apply to goals only", PlayerID: inc.PlayerID}
	}
	if inc.Penalty && inc.OwnGoal {
		return &ValidationError{Reason: "a goal cannot be both a penalty and an own goal", PlayerID: inc.PlayerID}
	}
	if inc.Kind == models.IncidentAssist {
		if inc.LinkedProvisionalID != "" {
			linked, ok := l.Get(inc.LinkedProvisionalID)
			if !ok || linked.Kind != models.IncidentGoal {
				return &ValidationError{Reason: "assist must reference a recorded goal", PlayerID: inc.PlayerID}
			}
			if linked.OwnGoal {
				return &ValidationError{Reason: "an own goal cannot be assisted", PlayerID: inc.PlayerID}
			}
		} else if inc.LinkedID == 0 {
			// Подтверждённая связь допустима при восстановлении журнала.
			return &ValidationError{Reason: "assist must reference a recorded goal", PlayerID: inc.PlayerID}
		}
	}
	if inc.Kind.IsCard() && l.ejected(inc.PlayerID) {
		return &ConflictError{Reason: "player already carries an active ejection", PlayerID: inc.PlayerID}
	}
	if l.eligifunc != nil {
		if err := l.eligifunc(inc.PlayerID, inc.Side); err != nil {
			return err
		}
	}
	return nil
}

// Retract удаляет запись по предварительному id. Идемпотентно: ретракция
// отсутствующей записи — no-op, используется и для undo оператора, и для
// отката после отказа сервера.
func (l *Ledger) Retract(provisionalID string) (models.Incident, bool) {
	for i, e := range l.entries {
		if e.ProvisionalID == provisionalID {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			delete(l.seqs, provisionalID)
			return e, true
		}
	}
	return models.Incident{}, false
}

// reinstate возвращает ранее ретрагированную запись без валидации и без
// учёта заморозки: откат неудавшегося undo обязан восстановить состояние
// ровно таким, каким оно было, даже после FINISHED.
func (l *Ledger) reinstate(inc models.Incident) {
	seq := l.nextSeq
	l.nextSeq++
	l.seqs[inc.ProvisionalID] = seq
	l.entries = append(l.entries, inc)
	sort.Slice(l.entries, func(i, j int) bool {
		a, b := l.entries[i], l.entries[j]
		if a.Minute != b.Minute {
			return a.Minute < b.Minute
		}
		return l.seqs[a.ProvisionalID] < l.seqs[b.ProvisionalID]
	})
}

// Confirm подменяет предварительный id подтверждённым серверным, не трогая
// позицию записи.
func (l *Ledger) Confirm(provisionalID string, serverID int64) bool {
	for i := range l.entries {
		if l.entries[i].ProvisionalID == provisionalID {
			l.entries[i].ID = serverID
			return true
		}
	}
	return false
}

func (l *Ledger) Get(provisionalID string) (*models.Incident, bool) {
	if provisionalID == "" {
		return nil, false
	}
	for i := range l.entries {
		if l.entries[i].ProvisionalID == provisionalID {
			inc := l.entries[i]
			return &inc, true
		}
	}
	return nil, false
}

// ScoreFor возвращает счёт стороны: голы в её пользу плюс автоголы
// противоположной стороны.
func (l *Ledger) ScoreFor(side models.Side) int {
	score := 0
	for _, e := range l.entries {
		if e.Kind != models.IncidentGoal {
			continue
		}
		credited := e.Side
		if e.OwnGoal {
			credited = e.Side.Opposite()
		}
		if credited == side {
			score++
		}
	}
	return score
}

// TallyFor сворачивает журнал в сводку по одному игроку. Вторая жёлтая
// считается удалением и двумя жёлтыми для дисциплинарного учёта.
func (l *Ledger) TallyFor(playerID int) models.PlayerMatchTally {
	t := models.PlayerMatchTally{PlayerID: playerID}
	for _, e := range l.entries {
		if e.PlayerID != playerID {
			continue
		}
		switch e.Kind {
		case models.IncidentGoal:
			if !e.OwnGoal {
				t.Goals++
			}
		case models.IncidentAssist:
			t.Assists++
		case models.IncidentYellowCard:
			t.YellowCards++
		case models.IncidentRedCard:
			t.Ejected = true
		case models.IncidentDoubleYellow:
			t.YellowCards += 2
			if l.supersededYellowPresent(e) {
				// Первая жёлтая уже учтена собственной записью.
				t.YellowCards--
			}
			t.Ejected = true
		}
	}
	return t
}

// Tallies возвращает сводки всех игроков, упомянутых в журнале.
func (l *Ledger) Tallies() map[int]models.PlayerMatchTally {
	tallies := make(map[int]models.PlayerMatchTally)
	for _, e := range l.entries {
		if _, ok := tallies[e.PlayerID]; !ok {
			tallies[e.PlayerID] = l.TallyFor(e.PlayerID)
		}
	}
	return tallies
}

// Incidents возвращает копию ленты в каноническом порядке.
func (l *Ledger) Incidents() []models.Incident {
	out := make([]models.Incident, len(l.entries))
	copy(out, l.entries)
	return out
}

// activeYellow возвращает первую жёлтую карточку игрока, если она есть.
func (l *Ledger) activeYellow(playerID int) *models.Incident {
	for i := range l.entries {
		e := &l.entries[i]
		if e.PlayerID == playerID && e.Kind == models.IncidentYellowCard {
			return e
		}
	}
	return nil
}

// supersededYellowPresent проверяет, есть ли ещё в журнале жёлтая, на которую
// ссылается вторая жёлтая.
func (l *Ledger) supersededYellowPresent(dy models.Incident) bool {
	for _, e := range l.entries {
		if e.Kind != models.IncidentYellowCard || e.PlayerID != dy.PlayerID {
			continue
		}
		if dy.LinkedProvisionalID != "" && e.ProvisionalID == dy.LinkedProvisionalID {
			return true
		}
		if dy.LinkedID != 0 && e.ID == dy.LinkedID {
			return true
		}
	}
	return false
}

func (l *Ledger) ejected(playerID int) bool {
	for _, e := range l.entries {
		if e.PlayerID != playerID {
			continue
		}
		if e.Kind == models.IncidentRedCard || e.Kind == models.IncidentDoubleYellow {
			return true
		}
	}
	return false
}
