package session

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrMachineClosed is returned for operations on a closed machine.
	ErrMachineClosed = errors.New("session: machine is closed")
	// ErrListenerExists is returned when a listener id is already taken.
	ErrListenerExists = errors.New("session: listener already exists")
	// ErrListenerNotFound is returned for an unknown listener id.
	ErrListenerNotFound = errors.New("session: listener not found")
)

// ListenerStats tracks delivery counters for one listener.
type ListenerStats struct {
	Sent    uint64
	Dropped uint64
}

type listenerSlot struct {
	id    string
	ch    chan FinalizedRecording
	stats *ListenerStats
}

// fanout delivers finalized recordings to listeners by value with a
// drop-new overflow policy: publishing never blocks the event goroutine,
// a listener that cannot keep up loses the newest record and the drop
// is counted.
type fanout struct {
	mu          sync.RWMutex
	subscribers map[string]*listenerSlot
	closed      bool
}

func newFanout() *fanout {
	return &fanout{subscribers: make(map[string]*listenerSlot)}
}

func (f *fanout) subscribe(id string, buffer int) (<-chan FinalizedRecording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrMachineClosed
	}
	if _, exists := f.subscribers[id]; exists {
		return nil, ErrListenerExists
	}
	if buffer < 1 {
		buffer = 1
	}

	slot := &listenerSlot{
		id:    id,
		ch:    make(chan FinalizedRecording, buffer),
		stats: &ListenerStats{},
	}
	f.subscribers[id] = slot
	return slot.ch, nil
}

func (f *fanout) unsubscribe(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, exists := f.subscribers[id]
	if !exists {
		return ErrListenerNotFound
	}
	delete(f.subscribers, id)
	close(slot.ch)
	return nil
}

// publish fans the record out. Safe against concurrent subscribe and
// unsubscribe; the write lock in unsubscribe means no send can race the
// channel close.
func (f *fanout) publish(rec FinalizedRecording) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return
	}
	for _, slot := range f.subscribers {
		select {
		case slot.ch <- rec:
			atomic.AddUint64(&slot.stats.Sent, 1)
		default:
			atomic.AddUint64(&slot.stats.Dropped, 1)
		}
	}
}

func (f *fanout) stats(id string) (ListenerStats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	slot, exists := f.subscribers[id]
	if !exists {
		return ListenerStats{}, ErrListenerNotFound
	}
	return ListenerStats{
		Sent:    atomic.LoadUint64(&slot.stats.Sent),
		Dropped: atomic.LoadUint64(&slot.stats.Dropped),
	}, nil
}

func (f *fanout) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for _, slot := range f.subscribers {
		close(slot.ch)
	}
	f.subscribers = nil
}
