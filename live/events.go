package live

import "github.com/ligasur/matchday/models"

// EventType — тип сообщения живой ленты матча.
type EventType string

const (
	EventSnapshot          EventType = "SNAPSHOT"
	EventIncidentConfirmed EventType = "INCIDENT_CONFIRMED"
	EventIncidentUndone    EventType = "INCIDENT_UNDONE"
	EventPhaseChanged      EventType = "PHASE_CHANGED"
	EventOperationFailed   EventType = "OPERATION_FAILED"
)

// Event публикуется сессией после каждой значимой перемены состояния:
// зрительская лента и консоль оператора получают одинаковый поток.
type Event struct {
	Type    EventType   `json:"type"`
	MatchID int         `json:"match_id"`
	Payload interface{} `json:"payload"`
}

// Notifier принимает события сессии. Реализации: WebSocket-хаб, брокер
// ленты, multiNotifier в сервисном слое.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ev Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// IncidentConfirmedPayload — молчаливая перепривязка предварительного id к
// подтверждённому: визуально для клиента ничего не меняется.
type IncidentConfirmedPayload struct {
	ProvisionalID string `json:"provisional_id"`
	ID            int64  `json:"id"`
}

// OperationFailedPayload называет действие, которое не удалось, и контекст,
// достаточный для ручного повтора оператором.
type OperationFailedPayload struct {
	Action        string `json:"action"`
	ProvisionalID string `json:"provisional_id,omitempty"`
	PlayerID      int    `json:"player_id,omitempty"`
	Reason        string `json:"reason"`
}

// PhaseChangedPayload сопровождает подтверждённый переход фазы.
type PhaseChangedPayload struct {
	Phase models.Phase `json:"phase"`
}

// IncidentUndonePayload — корректировка журнала; публикуется, а не
// замалчивается, чтобы аудиту были видны исправления.
type IncidentUndonePayload struct {
	ProvisionalID string `json:"provisional_id"`
	ID            int64  `json:"id,omitempty"`
	PlayerID      int    `json:"player_id"`
}
