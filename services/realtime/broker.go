package realtimesvc

import (
	"context"
	"sync"

	"github.com/trezcool/balozi/core"
)

const subscriberBuffer = 16

// Broker is an in-process publish/subscribe hub. Publishes never block;
// events to a subscriber whose buffer is full are dropped.
type Broker struct {
	mutex  sync.RWMutex
	subs   map[string]map[int]chan core.RealtimeEvent // topic -> sub id
	nextID int
	closed bool
}

var _ core.Broker = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]chan core.RealtimeEvent)}
}

func (b *Broker) Publish(ctx context.Context, evt core.RealtimeEvent) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.closed {
		return nil
	}
	for _, ch := range b.subs[evt.Topic] {
		select {
		case ch <- evt:
		default: // slow consumer
		}
	}
	return nil
}

func (b *Broker) Subscribe(topic string) (<-chan core.RealtimeEvent, func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	ch := make(chan core.RealtimeEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan core.RealtimeEvent)
	}
	b.subs[topic][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mutex.Lock()
			defer b.mutex.Unlock()
			if subs, ok := b.subs[topic]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
				if len(subs) == 0 {
					delete(b.subs, topic)
				}
			}
		})
	}
	return ch, cancel
}

// Close drops all subscribers; later publishes are no-ops.
func (b *Broker) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
}
