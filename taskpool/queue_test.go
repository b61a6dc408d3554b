package taskpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushPopFIFO(t *testing.T) {
	q := newQueue[int](0)
	q.Push(1)
	q.Push(2)

	v, ok := q.Pop(nil)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Pop(nil)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestQueuePopTimesOutWhenEmpty(t *testing.T) {
	q := newQueue[int](0)
	timeout := 10 * time.Millisecond
	_, ok := q.Pop(&timeout)
	assert.False(t, ok)
}

func TestQueuePopUnblocksOnClose(t *testing.T) {
	q := newQueue[int](0)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(nil)
		done <- ok
	}()

	time.Sleep(5 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop should unblock when the queue is closed")
	}
}

func TestQueueBoundedPushBlocksUntilSpace(t *testing.T) {
	q := newQueue[int](1)
	q.Push(1)

	pushed := make(chan struct{})
	go func() {
		q.Push(2)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push should block while the queue is at capacity")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := q.Pop(nil)
	require.True(t, ok)

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("Push should unblock once space is freed")
	}
}

func TestQueueDrain(t *testing.T) {
	q := newQueue[int](0)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	items := q.Drain()
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, 0, q.Len())
}
