package taskpool

import (
	"encoding/gob"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gob.Register(0)
}

// These tests exercise ServeRemote directly over an in-memory pipe,
// standing in for the os/exec child process a remoteWorker actually
// talks to: the wire protocol is identical either way.
func TestServeRemoteRunsRegisteredKind(t *testing.T) {
	registry := NewRegistry()
	registry.Register("double", func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	})

	parentR, childW := io.Pipe()
	childR, parentW := io.Pipe()
	go func() { _ = ServeRemote(registry, childR, childW) }()

	enc := gob.NewEncoder(parentW)
	dec := gob.NewDecoder(parentR)

	require.NoError(t, enc.Encode(taskEnvelope{TaskID: 1, Kind: "double", Args: Args{21}}))

	var running wireMessage
	require.NoError(t, dec.Decode(&running))
	assert.Equal(t, msgRunning, running.Tag)

	var result wireMessage
	require.NoError(t, dec.Decode(&result))
	assert.Equal(t, msgResult, result.Tag)
	assert.Equal(t, 42, result.Result)

	require.NoError(t, enc.Encode(taskEnvelope{Shutdown: true}))
	var shutdown wireMessage
	require.NoError(t, dec.Decode(&shutdown))
	assert.Equal(t, msgShutdown, shutdown.Tag)
}

func TestServeRemoteReportsUnknownKind(t *testing.T) {
	registry := NewRegistry()
	parentR, childW := io.Pipe()
	childR, parentW := io.Pipe()
	go func() { _ = ServeRemote(registry, childR, childW) }()

	enc := gob.NewEncoder(parentW)
	dec := gob.NewDecoder(parentR)

	require.NoError(t, enc.Encode(taskEnvelope{TaskID: 1, Kind: "missing"}))

	var msg wireMessage
	require.NoError(t, dec.Decode(&msg))
	assert.Equal(t, msgException, msg.Tag)
	require.NotNil(t, msg.Err)
	assert.Contains(t, msg.Err.Message, "missing")
}

func TestWireErrorRoundTripsCauseChain(t *testing.T) {
	inner := errors.New("inner")
	outer := &InitializerError{WorkerName: "w1", Cause: inner}

	we := newWireError(outer, "trace")
	require.NotNil(t, we)
	require.NotNil(t, we.Cause)
	assert.Equal(t, inner.Error(), we.Cause.Message)
	assert.Equal(t, "trace", we.Traceback)

	remote := we.toRemoteError()
	assert.Equal(t, outer.Error(), remote.Message)
	assert.Equal(t, inner.Error(), remote.Unwrap().Error())
	assert.Equal(t, "trace", remote.Traceback)
}

func TestServeRemoteReportsTraceback(t *testing.T) {
	registry := NewRegistry()
	registry.Register("boom", func(args ...any) (any, error) {
		return nil, errors.New("boom")
	})
	parentR, childW := io.Pipe()
	childR, parentW := io.Pipe()
	go func() { _ = ServeRemote(registry, childR, childW) }()

	enc := gob.NewEncoder(parentW)
	dec := gob.NewDecoder(parentR)

	require.NoError(t, enc.Encode(taskEnvelope{TaskID: 1, Kind: "boom"}))

	var running wireMessage
	require.NoError(t, dec.Decode(&running))
	assert.Equal(t, msgRunning, running.Tag)

	var msg wireMessage
	require.NoError(t, dec.Decode(&msg))
	assert.Equal(t, msgException, msg.Tag)
	require.NotNil(t, msg.Err)
	assert.NotEmpty(t, msg.Err.Traceback)
	assert.Contains(t, msg.Err.Traceback, "taskpool")

	remote := msg.Err.toRemoteError()
	assert.NotEmpty(t, remote.Traceback)
}
