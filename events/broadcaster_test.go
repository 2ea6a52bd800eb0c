package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcasterFansOutToAllSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	ch1, _ := b.Subscribe()
	ch2, id2 := b.Subscribe()

	b.Publish(Event{Kind: KindEnergy, Energy: 42})

	ev1 := <-ch1
	ev2 := <-ch2
	require.Equal(t, KindEnergy, ev1.Kind)
	require.Equal(t, uint64(42), ev1.Energy)
	require.Equal(t, ev1, ev2)

	b.Unsubscribe(id2)
	_, ok := <-ch2
	require.False(t, ok)
}

func TestBroadcasterDropsWhenSubscriberBufferFull(t *testing.T) {
	b := NewBroadcaster(1)
	ch, _ := b.Subscribe()

	b.Publish(Event{Kind: KindOpen})
	b.Publish(Event{Kind: KindClose}) // dropped: buffer of 1 already full

	ev := <-ch
	require.Equal(t, KindOpen, ev.Kind)
	select {
	case <-ch:
		t.Fatal("expected no second event")
	default:
	}
}
