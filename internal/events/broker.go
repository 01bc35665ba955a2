package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Broker рассылает события подписчикам поста внутри процесса.
type Broker struct {
	mu sync.RWMutex
	//   map[postID] map[subscriberID] channel
	subs   map[string]map[string]chan Event
	buffer int
}

func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[string]map[string]chan Event),
		buffer: 16,
	}
}

// Subscribe подписывает на события postID до отмены ctx, затем закрывает канал.
func (b *Broker) Subscribe(ctx context.Context, postID string) <-chan Event {
	ch := make(chan Event, b.buffer)
	subID := uuid.NewString()

	b.mu.Lock()
	if b.subs[postID] == nil {
		b.subs[postID] = make(map[string]chan Event)
	}
	b.subs[postID][subID] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if postSubs, ok := b.subs[postID]; ok {
			delete(postSubs, subID)
			if len(postSubs) == 0 {
				delete(b.subs, postID)
			}
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish не блокируется. Подписчик с заполненным буфером пропускает событие.
func (b *Broker) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e.PostID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// Subscribers возвращает число активных подписок на postID.
func (b *Broker) Subscribers(postID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[postID])
}
