package feed

import "sync"

// Message — доставленное сообщение внутрипроцессного брокера.
type Message struct {
	RoutingKey string
	Body       []byte
}

// MemoryBroker — реализация Broker в памяти: деплои без AMQP и тесты.
type MemoryBroker struct {
	mu        sync.RWMutex
	consumers []chan Message
	closed    bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

func (b *MemoryBroker) Publish(routingKey string, body []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, ch := range b.consumers {
		// Полный буфер потребителя — сообщение пропускается, публикация
		// не блокируется.
		select {
		case ch <- Message{RoutingKey: routingKey, Body: body}:
		default:
		}
	}
	return nil
}

// Consume возвращает канал, получающий все последующие публикации.
func (b *MemoryBroker) Consume() <-chan Message {
	ch := make(chan Message, 64)
	b.mu.Lock()
	b.consumers = append(b.consumers, ch)
	b.mu.Unlock()
	return ch
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.consumers {
		close(ch)
	}
	b.consumers = nil
	return nil
}
