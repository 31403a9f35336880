package models

import "time"

// MatchReport — финализированный отчёт матча для внешних потребителей
// (таблицы, статистика, печатная форма). Читается из устоявшегося журнала и
// никогда не мутируется.
type MatchReport struct {
	Match         *Match             `json:"match"`
	LocalScore    int                `json:"local_score"`
	VisitingScore int                `json:"visiting_score"`
	Timeline      []Incident         `json:"timeline"`
	Tallies       []PlayerMatchTally `json:"tallies"`
	GeneratedAt   time.Time          `json:"generated_at"`
}
