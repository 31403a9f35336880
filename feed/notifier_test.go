package feed

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ligasur/matchday/live"
)

func TestNotifierForwardsConfirmedEventsOnly(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()
	messages := broker.Consume()

	notifier := NewNotifier(broker, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Оптимистичные снапшоты во внешнюю ленту не уходят.
	notifier.Notify(live.Event{Type: live.EventSnapshot, MatchID: 1})
	notifier.Notify(live.Event{Type: live.EventOperationFailed, MatchID: 1})
	notifier.Notify(live.Event{
		Type:    live.EventIncidentConfirmed,
		MatchID: 1,
		Payload: live.IncidentConfirmedPayload{ProvisionalID: "abc", ID: 77},
	})

	select {
	case msg := <-messages:
		if msg.RoutingKey != "match.1.INCIDENT_CONFIRMED" {
			t.Fatalf("routing key = %q, want match.1.INCIDENT_CONFIRMED", msg.RoutingKey)
		}
		var ev live.Event
		if err := json.Unmarshal(msg.Body, &ev); err != nil {
			t.Fatalf("published body is not valid JSON: %v", err)
		}
		if ev.Type != live.EventIncidentConfirmed || ev.MatchID != 1 {
			t.Fatalf("published event = %+v", ev)
		}
	default:
		t.Fatalf("confirmed event was not published")
	}

	select {
	case msg := <-messages:
		t.Fatalf("unexpected extra message %q", msg.RoutingKey)
	default:
	}
}

func TestMemoryBrokerDropsWhenConsumerFull(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()
	messages := broker.Consume()

	// Переполняем буфер потребителя; публикация не должна блокироваться.
	for i := 0; i < 200; i++ {
		if err := broker.Publish("match.1.PHASE_CHANGED", []byte("{}")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	received := 0
	for {
		select {
		case <-messages:
			received++
			continue
		default:
		}
		break
	}
	if received == 0 || received >= 200 {
		t.Fatalf("received = %d, want a full buffer's worth with the rest dropped", received)
	}
}

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey(42, live.EventPhaseChanged); got != "match.42.PHASE_CHANGED" {
		t.Fatalf("RoutingKey = %q, want match.42.PHASE_CHANGED", got)
	}
}
