// Package feed публикует подтверждённые события матчей для внешних
// потребителей журнала (отчёты, таблицы, статистика). Потребители читают
// финализированный журнал и никогда его не мутируют.
package feed

import (
	"fmt"

	"github.com/ligasur/matchday/live"
)

// Broker — абстракция шины событий: AMQP в проде, память в тестах и в
// деплоях без брокера.
type Broker interface {
	// Publish отправляет сообщение с ключом маршрутизации match.<id>.<type>.
	Publish(routingKey string, body []byte) error
	Close() error
}

// RoutingKey строит ключ маршрутизации события матча.
func RoutingKey(matchID int, eventType live.EventType) string {
	return fmt.Sprintf("match.%d.%s", matchID, eventType)
}
