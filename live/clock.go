package live

import (
	"time"

	"github.com/ligasur/matchday/models"
)

// Clock отслеживает игровое время матча: два тайма плюс перерыв. Переходы
// выполняет только оператор; часы никогда не продвигают фазу сами и не
// блокируют мутации журнала — минута инцидента всегда вводится вручную.
type Clock struct {
	phase           models.Phase
	firstHalfStart  *time.Time
	secondHalfStart *time.Time
	halfMinutes     int
	halfTimeMinutes int
}

func NewClock(halfMinutes, halfTimeMinutes int) *Clock {
	return &Clock{
		phase:           models.PhaseNotStarted,
		halfMinutes:     halfMinutes,
		halfTimeMinutes: halfTimeMinutes,
	}
}

// ClockFromMatch восстанавливает часы открытого ранее матча (например, после
// рестарта процесса) из сохранённого состояния.
func ClockFromMatch(m *models.Match) *Clock {
	return &Clock{
		phase:           m.Phase,
		firstHalfStart:  m.FirstHalfStart,
		secondHalfStart: m.SecondHalfStart,
		halfMinutes:     m.HalfMinutes,
		halfTimeMinutes: m.HalfTimeMinutes,
	}
}

func (c *Clock) Phase() models.Phase { return c.phase }

func (c *Clock) FirstHalfStart() *time.Time  { return c.firstHalfStart }
func (c *Clock) SecondHalfStart() *time.Time { return c.secondHalfStart }

// InPlay reports whether incidents may currently be recorded.
func (c *Clock) InPlay() bool {
	return c.phase == models.PhaseFirstHalf || c.phase == models.PhaseSecondHalf
}

// Start: NOT_STARTED → FIRST_HALF.
func (c *Clock) Start(now time.Time) error {
	if c.phase != models.PhaseNotStarted {
		return &StateError{Phase: c.phase, Action: string(models.ActionStart)}
	}
	t := now
	c.firstHalfStart = &t
	c.phase = models.PhaseFirstHalf
	return nil
}

// EndFirstHalf: FIRST_HALF → HALF_TIME.
func (c *Clock) EndFirstHalf() error {
	if c.phase != models.PhaseFirstHalf {
		return &StateError{Phase: c.phase, Action: string(models.ActionEndFirstHalf)}
	}
	c.phase = models.PhaseHalfTime
	return nil
}

// StartSecondHalf: HALF_TIME → SECOND_HALF.
func (c *Clock) StartSecondHalf(now time.Time) error {
	if c.phase != models.PhaseHalfTime {
		return &StateError{Phase: c.phase, Action: string(models.ActionStartSecondHalf)}
	}
	t := now
	c.secondHalfStart = &t
	c.phase = models.PhaseSecondHalf
	return nil
}

// Finish завершает матч из любой игровой фазы или перерыва. Терминально.
func (c *Clock) Finish() error {
	switch c.phase {
	case models.PhaseFirstHalf, models.PhaseHalfTime, models.PhaseSecondHalf:
		c.phase = models.PhaseFinished
		return nil
	default:
		return &StateError{Phase: c.phase, Action: string(models.ActionFinish)}
	}
}

// Apply выполняет переход по коду действия. Неизвестное действие — ошибка
// валидации, а не паника: код приходит с клиента.
func (c *Clock) Apply(action models.PhaseAction, now time.Time) error {
	switch action {
	case models.ActionStart:
		return c.Start(now)
	case models.ActionEndFirstHalf:
		return c.EndFirstHalf()
	case models.ActionStartSecondHalf:
		return c.StartSecondHalf(now)
	case models.ActionFinish:
		return c.Finish()
	default:
		return &ValidationError{Reason: "unknown phase action " + string(action)}
	}
}

// ElapsedMinutes — справочное игровое время. Не ограничено длиной тайма
// (добавленное время показывается как 27' при тайме в 25), и никогда не
// используется как условие для мутаций журнала.
func (c *Clock) ElapsedMinutes(now time.Time) int {
	switch c.phase {
	case models.PhaseNotStarted:
		return 0
	case models.PhaseFirstHalf:
		if c.firstHalfStart == nil {
			return 0
		}
		return int(now.Sub(*c.firstHalfStart).Minutes())
	case models.PhaseHalfTime:
		return c.halfMinutes
	case models.PhaseSecondHalf:
		if c.secondHalfStart == nil {
			return c.halfMinutes
		}
		return c.halfMinutes + int(now.Sub(*c.secondHalfStart).Minutes())
	case models.PhaseFinished:
		if c.secondHalfStart == nil {
			// Матч завершён досрочно, второй тайм не игрался.
			return c.halfMinutes
		}
		return 2 * c.halfMinutes
	default:
		return 0
	}
}

// clockState is what a rejected phase transition restores.
type clockState struct {
	phase           models.Phase
	firstHalfStart  *time.Time
	secondHalfStart *time.Time
}

func (c *Clock) capture() clockState {
	return clockState{phase: c.phase, firstHalfStart: c.firstHalfStart, secondHalfStart: c.secondHalfStart}
}

func (c *Clock) restore(s clockState) {
	c.phase = s.phase
	c.firstHalfStart = s.firstHalfStart
	c.secondHalfStart = s.secondHalfStart
}
