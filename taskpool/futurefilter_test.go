package taskpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureFilterYieldsInCompletionOrder(t *testing.T) {
	a := newFuture(nil, 1)
	b := newFuture(nil, 2)
	filter := NewFutureFilter(a, b)

	require.NoError(t, b.SetResult("b", time.Now()))
	first, err := filter.Get(nil)
	require.NoError(t, err)
	assert.Same(t, b, first)

	require.NoError(t, a.SetResult("a", time.Now()))
	second, err := filter.Get(nil)
	require.NoError(t, err)
	assert.Same(t, a, second)
}

func TestFutureFilterGetReturnsNilWhenEmpty(t *testing.T) {
	filter := NewFutureFilter()
	f, err := filter.Get(nil)
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestFutureFilterGetTimesOut(t *testing.T) {
	f := newFuture(nil, 1)
	filter := NewFutureFilter(f)
	timeout := 10 * time.Millisecond
	_, err := filter.Get(&timeout)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFutureFilterGetAllDrainsEverything(t *testing.T) {
	futures := []*Future{newFuture(nil, 1), newFuture(nil, 2), newFuture(nil, 3)}
	filter := NewFutureFilter(futures...)

	go func() {
		for _, f := range futures {
			_ = f.SetResult(f.TaskID(), time.Now())
		}
	}()

	seen := make(map[uint64]bool)
	for f := range filter.GetAll(nil) {
		seen[f.TaskID()] = true
	}
	assert.Len(t, seen, 3)
}
