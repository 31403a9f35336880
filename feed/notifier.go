package feed

import (
	"encoding/json"
	"log/slog"

	"github.com/ligasur/matchday/live"
)

// Notifier переправляет события сессии в брокер. Публикуются только
// подтверждённые перемены: оптимистичные снапшоты остаются делом
// WebSocket-ленты, внешним потребителям нужен устоявшийся журнал.
type Notifier struct {
	broker Broker
	logger *slog.Logger
}

func NewNotifier(broker Broker, logger *slog.Logger) *Notifier {
	return &Notifier{broker: broker, logger: logger}
}

func (n *Notifier) Notify(ev live.Event) {
	switch ev.Type {
	case live.EventIncidentConfirmed, live.EventIncidentUndone, live.EventPhaseChanged:
	default:
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("failed to marshal feed event", slog.Any("error", err))
		return
	}
	if err := n.broker.Publish(RoutingKey(ev.MatchID, ev.Type), body); err != nil {
		n.logger.Error("failed to publish feed event",
			slog.Int("match_id", ev.MatchID),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err))
	}
}
