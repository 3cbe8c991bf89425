package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOutToEverySubscriber(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: "task.added", Data: 1})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			assert.Equal(t, "task.added", e.Type)
			assert.False(t, e.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestFullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "one"})
	b.Publish(Event{Type: "two"})

	assert.Equal(t, uint64(1), b.Dropped())
	assert.Equal(t, "one", (<-ch).Type)
}

func TestUnsubscribeClosesOnceAndStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()

	_, open := <-ch
	require.False(t, open)
	b.Publish(Event{Type: "after"})
	assert.Zero(t, b.Dropped())
}

func TestNopBus(t *testing.T) {
	ch, unsub := Nop().Subscribe(1)
	defer unsub()
	Nop().Publish(Event{Type: "x"})
	_, open := <-ch
	assert.False(t, open)
}
