package status

import (
	"sync"

	"github.com/nerrad567/boomgate-core/internal/gate"
)

// Logger defines the logging interface used by the Broadcaster.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// defaultObserverBuffer is the per-observer snapshot buffer size.
const defaultObserverBuffer = 16

// Observer is one registered snapshot consumer. Snapshots arrive on
// the channel returned by Snapshots, in publish order. A slow observer
// loses the oldest buffered snapshots first; the most recent state
// always wins.
type Observer struct {
	ch chan gate.Snapshot

	mu     sync.Mutex
	closed bool
}

// Snapshots returns the channel snapshots are delivered on. The
// channel is closed when the observer is unsubscribed.
func (o *Observer) Snapshots() <-chan gate.Snapshot {
	return o.ch
}

// deliver hands a snapshot to the observer without ever blocking.
// When the buffer is full the oldest entry is dropped to make room.
func (o *Observer) deliver(snap gate.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	select {
	case o.ch <- snap:
	default:
		select {
		case <-o.ch:
		default:
		}
		select {
		case o.ch <- snap:
		default:
		}
	}
}

// close marks the observer closed and closes its channel. Safe against
// concurrent deliver calls.
func (o *Observer) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}

// Broadcaster distributes gate snapshots to all registered observers.
//
// It implements gate.Publisher; the machine calls Publish while
// holding its own lock, so delivery is strictly non-blocking and
// failures are isolated per observer. Observers that connect
// mid-sequence receive only subsequent snapshots; Current answers
// point-in-time queries synchronously from the machine.
//
// Thread Safety: all methods are safe for concurrent use.
type Broadcaster struct {
	machine *gate.Machine
	logger  Logger

	mu        sync.RWMutex
	observers map[*Observer]struct{}
}

// NewBroadcaster creates a broadcaster over the given machine.
func NewBroadcaster(machine *gate.Machine, logger Logger) *Broadcaster {
	return &Broadcaster{
		machine:   machine,
		logger:    logger,
		observers: make(map[*Observer]struct{}),
	}
}

// Subscribe registers a new observer.
//
// Parameters:
//   - buffer: Snapshot buffer size; values below 1 use the default
//
// Returns:
//   - *Observer: Registered observer; unsubscribe when done
func (b *Broadcaster) Subscribe(buffer int) *Observer {
	if buffer < 1 {
		buffer = defaultObserverBuffer
	}
	o := &Observer{ch: make(chan gate.Snapshot, buffer)}

	b.mu.Lock()
	b.observers[o] = struct{}{}
	count := len(b.observers)
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Debug("observer subscribed", "observers", count)
	}
	return o
}

// Unsubscribe removes an observer and closes its snapshot channel.
// Only the call that actually removes the observer closes the channel,
// so double unsubscription is safe.
func (b *Broadcaster) Unsubscribe(o *Observer) {
	b.mu.Lock()
	_, existed := b.observers[o]
	delete(b.observers, o)
	count := len(b.observers)
	b.mu.Unlock()

	if existed {
		o.close()
		if b.logger != nil {
			b.logger.Debug("observer unsubscribed", "observers", count)
		}
	}
}

// Publish delivers a snapshot to every registered observer. Delivery
// to one observer never blocks or fails delivery to the others.
func (b *Broadcaster) Publish(snap gate.Snapshot) {
	b.mu.RLock()
	observers := make([]*Observer, 0, len(b.observers))
	for o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.RUnlock()

	for _, o := range observers {
		o.deliver(snap)
	}
}

// Current returns the gate status right now, answered synchronously
// from the machine.
func (b *Broadcaster) Current() gate.Snapshot {
	return b.machine.Snapshot()
}

// ObserverCount returns the number of registered observers.
func (b *Broadcaster) ObserverCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Tee forwards each snapshot to multiple publishers in order. Used to
// fan one machine out to the broadcaster plus transport publishers
// (MQTT state topic, telemetry).
type Tee []gate.Publisher

// Publish forwards the snapshot to every publisher.
func (t Tee) Publish(snap gate.Snapshot) {
	for _, p := range t {
		p.Publish(snap)
	}
}
