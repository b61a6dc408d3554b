package taskpool

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureSetResultTransitionsToCompleted(t *testing.T) {
	f := newFuture(nil, 1)
	require.True(t, f.IsPending())

	require.NoError(t, f.SetStatus(Running, time.Now()))
	require.NoError(t, f.SetResult(42, time.Now()))

	assert.True(t, f.IsCompleted())
	assert.True(t, f.IsDone())
	assert.Equal(t, 42, f.Result())
	assert.NoError(t, f.Exception())
}

func TestFutureSetExceptionTransitionsToFailed(t *testing.T) {
	f := newFuture(nil, 1)
	boom := errors.New("boom")
	require.NoError(t, f.SetException(boom, time.Now()))

	assert.True(t, f.IsFailed())
	assert.Equal(t, boom, f.Exception())

	v, err := f.Collect(nil)
	assert.Nil(t, v)
	assert.Equal(t, boom, err)
}

func TestFutureCannotTransitionAfterDone(t *testing.T) {
	f := newFuture(nil, 1)
	require.NoError(t, f.SetResult("ok", time.Now()))
	assert.ErrorIs(t, f.SetResult("again", time.Now()), ErrInvalidState)
	assert.ErrorIs(t, f.SetException(errors.New("late"), time.Now()), ErrInvalidState)
}

func TestFutureCollectCancelled(t *testing.T) {
	f := newFuture(nil, 1)
	require.NoError(t, f.SetStatus(Cancelled, time.Now()))
	v, err := f.Collect(nil)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFutureCollectTimeout(t *testing.T) {
	f := newFuture(nil, 1)
	timeout := 10 * time.Millisecond
	_, err := f.Collect(&timeout)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFutureCancelFlagDoesNotForceCancelledStatus(t *testing.T) {
	f := newFuture(nil, 1)
	f.Cancel()
	assert.True(t, f.CancelFlag())
	assert.True(t, f.IsPending())
}

func TestFutureAddCallbackRunsImmediatelyIfAlreadyDone(t *testing.T) {
	f := newFuture(nil, 1)
	require.NoError(t, f.SetResult(7, time.Now()))

	called := make(chan *Future, 1)
	f.AddCallback(func(done *Future) { called <- done })

	select {
	case got := <-called:
		assert.Same(t, f, got)
	case <-time.After(time.Second):
		t.Fatal("callback on an already-done future should run synchronously")
	}
}

func TestFutureAddCallbackRunsOnTerminalTransition(t *testing.T) {
	f := newFuture(nil, 1)
	called := make(chan *Future, 1)
	f.AddCallback(func(done *Future) { called <- done })

	require.NoError(t, f.SetResult(1, time.Now()))

	select {
	case got := <-called:
		assert.Same(t, f, got)
	case <-time.After(time.Second):
		t.Fatal("callback should fire on the terminal transition")
	}
}

func TestFutureRemoveCallback(t *testing.T) {
	f := newFuture(nil, 1)
	var calls int
	cb := func(*Future) { calls++ }
	f.AddCallback(cb)
	f.RemoveCallback(cb)

	require.NoError(t, f.SetResult(1, time.Now()))
	assert.Equal(t, 0, calls)
}

func TestFutureWaitReturnsFalseOnTimeout(t *testing.T) {
	f := newFuture(nil, 1)
	timeout := 5 * time.Millisecond
	assert.False(t, f.Wait(&timeout))
}

func TestFutureDurationTracksRunningToTerminal(t *testing.T) {
	f := newFuture(nil, 1)
	start := time.Now()
	require.NoError(t, f.SetStatus(Pending, start))
	require.NoError(t, f.SetStatus(Running, start.Add(5*time.Millisecond)))
	require.NoError(t, f.SetResult("ok", start.Add(15*time.Millisecond)))

	pending, task := f.Duration()
	assert.Equal(t, 15*time.Millisecond, pending)
	assert.Equal(t, 10*time.Millisecond, task)
}
