package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase перечисляет временные фазы матча. Закрытый enum вместо строковых
// кодов; все переходы обрабатываются исчерпывающе в пакете live.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseFirstHalf
	PhaseHalfTime
	PhaseSecondHalf
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseFirstHalf:
		return "first_half"
	case PhaseHalfTime:
		return "half_time"
	case PhaseSecondHalf:
		return "second_half"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ParsePhase maps a stored phase code back to the enum.
func ParsePhase(s string) (Phase, bool) {
	switch s {
	case "not_started":
		return PhaseNotStarted, true
	case "first_half":
		return PhaseFirstHalf, true
	case "half_time":
		return PhaseHalfTime, true
	case "second_half":
		return PhaseSecondHalf, true
	case "finished":
		return PhaseFinished, true
	default:
		return PhaseNotStarted, false
	}
}

// MarshalJSON renders the phase as its string code.
func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := ParsePhase(s)
	if !ok {
		return fmt.Errorf("unknown match phase %q", s)
	}
	*p = v
	return nil
}

// Side указывает, какой стороне матча принадлежит событие.
type Side string

const (
	SideLocal    Side = "local"
	SideVisiting Side = "visiting"
)

func (s Side) Valid() bool {
	return s == SideLocal || s == SideVisiting
}

// Opposite returns the other side of the pitch.
func (s Side) Opposite() Side {
	if s == SideLocal {
		return SideVisiting
	}
	return SideLocal
}

// PhaseAction is an operator-triggered clock transition.
type PhaseAction string

const (
	ActionStart           PhaseAction = "start"
	ActionEndFirstHalf    PhaseAction = "end_first_half"
	ActionStartSecondHalf PhaseAction = "start_second_half"
	ActionFinish          PhaseAction = "finish"
)

// Match — авторитетное состояние одного матча лиги.
type Match struct {
	ID              int        `json:"id"`
	EditionID       int        `json:"edition_id"`
	LocalTeamID     int        `json:"local_team_id"`
	VisitingTeamID  int        `json:"visiting_team_id"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	FirstHalfStart  *time.Time `json:"first_half_start,omitempty"`
	SecondHalfStart *time.Time `json:"second_half_start,omitempty"`
	HalfMinutes     int        `json:"half_minutes"`
	HalfTimeMinutes int        `json:"half_time_minutes"`
	Phase           Phase      `json:"phase"`

	LocalTeam    *Team `json:"local_team,omitempty"`
	VisitingTeam *Team `json:"visiting_team,omitempty"`
}
