package events

import (
	"sync"

	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

type Kind string

const (
	// Inserted/Updated/Deleted carry the affected permit.
	Inserted Kind = "inserted"
	Updated  Kind = "updated"
	Deleted  Kind = "deleted"
	// Changed signals a whole-dataset change (spreadsheet ingest); Permit is
	// nil and subscribers should refresh.
	Changed Kind = "changed"
)

type Event struct {
	Kind   Kind           `json:"kind"`
	Permit *models.Permit `json:"permit,omitempty"`
}

// Bus fans change events out to subscribers (feed coordinator, websocket
// hub). Emit never blocks: a subscriber that falls behind loses events, and
// consumers treat a gap as a reason to refresh.
type Bus struct {
	mu     sync.Mutex
	nextId int
	subs   map[int]chan Event
}

const subscriberBuffer = 64

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel func. Cancel is
// idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextId
	b.nextId++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber is full; it will refresh on its next event
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
