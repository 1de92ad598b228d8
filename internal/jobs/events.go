package jobs

import (
	"sync"

	"stylebench/internal/domain"
)

// subBuffer bounds the per-subscriber queue. Every message is a full job
// snapshot, so when a slow observer falls behind the oldest queued snapshot
// can be dropped without losing state.
const subBuffer = 16

type subscriber struct {
	ch     chan domain.Job
	closed bool
}

// Broker is the per-process publish/subscribe registry keyed by job id. It
// carries no history: a subscriber that registers after a transition must
// fetch the current snapshot from the Store, which the stream endpoints do on
// connect.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]*subscriber
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]*subscriber)}
}

// Subscribe registers a listener for jobID. The returned cancel func is
// idempotent and is the only way a listener is removed; it closes the
// channel.
func (b *Broker) Subscribe(jobID string) (<-chan domain.Job, func()) {
	sub := &subscriber{ch: make(chan domain.Job, subBuffer)}

	b.mu.Lock()
	b.subs[jobID] = append(b.subs[jobID], sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		close(sub.ch)
		list := b.subs[jobID]
		for i, s := range list {
			if s == sub {
				b.subs[jobID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[jobID]) == 0 {
			delete(b.subs, jobID)
		}
	}
	return sub.ch, cancel
}

// Publish fans the snapshot out to all current subscribers for jobID,
// synchronously, in registration order. A full subscriber queue sheds its
// oldest snapshot rather than blocking the scheduler.
func (b *Broker) Publish(jobID string, snap domain.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[jobID] {
		select {
		case sub.ch <- snap:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

// Subscribers reports the current listener count for jobID.
func (b *Broker) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}
