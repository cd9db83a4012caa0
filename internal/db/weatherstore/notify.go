package weatherstore

import (
	"sync"
)

// ChangeOp says what kind of committed write produced a ChangeEvent.
type ChangeOp string

const (
	OpLocationUpserted ChangeOp = "location_upserted"
	OpWeatherUpserted  ChangeOp = "weather_upserted"
	OpWeatherPruned    ChangeOp = "weather_pruned"
	OpWeatherWiped     ChangeOp = "weather_wiped"
)

// ChangeEvent is broadcast after a committed write so consumers can refresh
// instead of polling.
type ChangeEvent struct {
	LocationID int64
	Op         ChangeOp
}

type notifier struct {
	mu   sync.Mutex
	subs map[int]chan ChangeEvent
	next int
}

func newNotifier() *notifier {
	return &notifier{
		subs: make(map[int]chan ChangeEvent),
	}
}

// subscribe returns a buffered event channel and a cancel func. The channel
// is closed on cancel.
func (n *notifier) subscribe() (<-chan ChangeEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++

	ch := make(chan ChangeEvent, 8)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// broadcast never blocks a writer: a subscriber with a full buffer misses
// the event and catches up on the next one.
func (n *notifier) broadcast(ev ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
