package models

// MatchSnapshot — неизменяемый срез состояния матча, возвращаемый консолью
// после каждой мутации. Обработчики сериализуют его как есть; никакой
// компонент не читает живое состояние напрямую.
type MatchSnapshot struct {
	MatchID        int                      `json:"match_id"`
	Phase          Phase                    `json:"phase"`
	ElapsedMinutes int                      `json:"elapsed_minutes"`
	LocalScore     int                      `json:"local_score"`
	VisitingScore  int                      `json:"visiting_score"`
	Timeline       []Incident               `json:"timeline"`
	Tallies        map[int]PlayerMatchTally `json:"tallies"`
}

// Score returns the score for one side.
func (s *MatchSnapshot) Score(side Side) int {
	if side == SideLocal {
		return s.LocalScore
	}
	return s.VisitingScore
}
