package models

import "time"

// IncidentKind — тип зафиксированного события матча.
type IncidentKind string

const (
	IncidentGoal         IncidentKind = "goal"
	IncidentYellowCard   IncidentKind = "yellow_card"
	IncidentRedCard      IncidentKind = "red_card"
	IncidentDoubleYellow IncidentKind = "double_yellow"
	IncidentAssist       IncidentKind = "assist"
)

func (k IncidentKind) Valid() bool {
	switch k {
	case IncidentGoal, IncidentYellowCard, IncidentRedCard, IncidentDoubleYellow, IncidentAssist:
		return true
	}
	return false
}

// IsCard reports whether the kind counts toward disciplinary state.
func (k IncidentKind) IsCard() bool {
	return k == IncidentYellowCard || k == IncidentRedCard || k == IncidentDoubleYellow
}

// Incident — дискретное событие матча, привязанное к игроку и стороне.
//
// ID присваивается сервером после подтверждения; пока запись оптимистична,
// её идентифицирует только ProvisionalID. Минута вводится оператором и
// никогда не выводится из часов.
type Incident struct {
	ID            int64        `json:"id,omitempty"`
	ProvisionalID string       `json:"provisional_id,omitempty"`
	MatchID       int          `json:"match_id"`
	Kind          IncidentKind `json:"kind"`
	Minute        int          `json:"minute"`
	Side          Side         `json:"side"`
	PlayerID      int          `json:"player_id"`
	Penalty       bool         `json:"penalty,omitempty"`
	OwnGoal       bool         `json:"own_goal,omitempty"`

	// LinkedProvisionalID связывает ассист с голом, который он создал,
	// а вторую жёлтую — с первой жёлтой того же игрока.
	LinkedProvisionalID string `json:"linked_provisional_id,omitempty"`
	LinkedID            int64  `json:"linked_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PlayerMatchTally — производная сводка по игроку за матч. Никогда не
// хранится; пересчитывается из журнала при каждой мутации.
type PlayerMatchTally struct {
	PlayerID    int  `json:"player_id"`
	Goals       int  `json:"goals"`
	Assists     int  `json:"assists"`
	YellowCards int  `json:"yellow_cards"`
	Ejected     bool `json:"ejected"`
}
