// Package eventbus is an in-process fan-out of reminder lifecycle events to
// observers such as the audit writer.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one published fact. Data is the producer's payload type.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus delivers every published event to every subscriber. Publish never
// blocks: an event is dropped for a subscriber whose buffer is full.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

const defaultBuffer = 8

// New returns an in-memory bus. It starts no goroutines.
func New() *Memory { return &Memory{} }

// Nop returns a bus that discards everything.
func Nop() Bus { return nop{} }

type nop struct{}

func (nop) Publish(Event) {}

func (nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}

type subscriber struct {
	ch chan Event
}

// Memory is the in-process Bus.
type Memory struct {
	// mu is read-held while sending so unsubscribe cannot close a channel
	// mid-send.
	mu   sync.RWMutex
	subs []*subscriber

	dropped atomic.Uint64
}

var _ Bus = (*Memory)(nil)

func (b *Memory) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Memory) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			for i, cur := range b.subs {
				if cur == s {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Memory) Dropped() uint64 { return b.dropped.Load() }
