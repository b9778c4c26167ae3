package bus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valentinerf/valentine-rf/internal/bus"
)

func TestSubscribeReceivesBacklog(t *testing.T) {
	t.Parallel()
	b := bus.NewSized(10, 4, 3)

	for i := 0; i < 5; i++ {
		b.Publish(bus.Event{Type: "x", Data: i})
	}

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	got := drain(t, sub, 3)
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestPublishFanOutToAllSubscribers(t *testing.T) {
	t.Parallel()
	b := bus.NewSized(10, 4, 0)

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish(bus.Event{Type: "x", Data: 1})

	assert.Equal(t, 1, (<-sub1.Events()).Data)
	assert.Equal(t, 1, (<-sub2.Events()).Data)
}

func TestSlowSubscriberDropsWithoutAffectingOthers(t *testing.T) {
	t.Parallel()
	b := bus.NewSized(1000, 2, 0)

	slow := b.Subscribe()
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	// Publish more than the slow subscriber's capacity without it reading,
	// while the fast subscriber reads each event as soon as it arrives.
	received := 0
	for i := 0; i < 10; i++ {
		b.Publish(bus.Event{Type: "x", Data: i})
		<-fast.Events()
		received++
	}

	assert.Positive(t, slow.Dropped())
	assert.True(t, slow.Lagging())

	for {
		select {
		case <-fast.Events():
			received++
		default:
			goto done
		}
	}
done:
	assert.Equal(t, 10, received)
	assert.Zero(t, fast.Dropped())
}

func TestRingDropsOldestOnOverflow(t *testing.T) {
	t.Parallel()
	b := bus.NewSized(3, 4, 3)

	for i := 0; i < 5; i++ {
		b.Publish(bus.Event{Type: "x", Data: i})
	}

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	got := drain(t, sub, 3)
	assert.Equal(t, []int{2, 3, 4}, got)
	assert.Positive(t, b.DroppedFromRing())
}

func TestUnsubscribeConcurrentWithPublishDoesNotPanic(t *testing.T) {
	t.Parallel()
	b := bus.NewSized(100, 10, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := b.Subscribe()
		wg.Add(1)
		go func(s *bus.Subscription) {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			b.Unsubscribe(s)
		}(sub)
	}

	for i := 0; i < 100; i++ {
		b.Publish(bus.Event{Type: "x", Data: i})
	}
	wg.Wait()
}

func drain(t *testing.T, sub *bus.Subscription, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	timeout := time.After(time.Second)
	for len(out) < n {
		select {
		case ev := <-sub.Events():
			out = append(out, ev.Data.(int))
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(out))
		}
	}
	return out
}
