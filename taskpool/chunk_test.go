package taskpool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetChunksSplitsEvenly(t *testing.T) {
	items := []Args{{0}, {1}, {2}, {3}, {4}}
	chunks := GetChunks(items, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []Args{{0}, {1}}, chunks[0])
	assert.Equal(t, []Args{{2}, {3}}, chunks[1])
	assert.Equal(t, []Args{{4}}, chunks[2])
}

func TestGetChunksZeroSizeDefaultsToOne(t *testing.T) {
	items := []Args{{0}, {1}}
	chunks := GetChunks(items, 0)
	assert.Len(t, chunks, 2)
}

func TestSplitStarmapTaskRunsEachChunkSequentially(t *testing.T) {
	square := func(args ...any) (any, error) {
		return args[0].(int) * args[0].(int), nil
	}
	items := []Args{{1}, {2}, {3}, {4}}
	subtasks := SplitStarmapTask(square, items, 2)
	require.Len(t, subtasks, 2)

	v0, err := subtasks[0]()
	require.NoError(t, err)
	assert.Equal(t, []any{1, 4}, v0)

	v1, err := subtasks[1]()
	require.NoError(t, err)
	assert.Equal(t, []any{9, 16}, v1)
}

func TestSplitStarmapTaskShortCircuitsOnError(t *testing.T) {
	boom := errors.New("boom")
	failing := func(args ...any) (any, error) {
		if args[0].(int) == 2 {
			return nil, boom
		}
		return args[0], nil
	}
	subtasks := SplitStarmapTask(failing, []Args{{1}, {2}, {3}}, 3)
	require.Len(t, subtasks, 1)

	_, err := subtasks[0]()
	assert.Equal(t, boom, err)
}

func TestSplitMapTaskZipsColumns(t *testing.T) {
	add := func(args ...any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	}
	subtasks := SplitMapTask(add, 10, []any{1, 2, 3}, []any{10, 20, 30})
	require.Len(t, subtasks, 1)

	v, err := subtasks[0]()
	require.NoError(t, err)
	assert.Equal(t, []any{11, 22, 33}, v)
}
