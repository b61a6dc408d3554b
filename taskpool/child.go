package taskpool

import (
	"encoding/gob"
	"fmt"
	"io"
	"runtime/debug"
	"time"
)

// ServeRemote runs the out-of-process side of a Remote pool: it reads
// taskEnvelopes from r, looks the kind up in registry, runs it, and
// writes the resulting wireMessages to w. It returns when the parent
// sends the shutdown envelope or r hits EOF (the parent process died).
// cmd/taskpoolworker is a thin wrapper around this function connected
// to os.Stdin/os.Stdout.
func ServeRemote(registry *Registry, r io.Reader, w io.Writer) error {
	dec := gob.NewDecoder(r)
	enc := gob.NewEncoder(w)

	for {
		var env taskEnvelope
		if err := dec.Decode(&env); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("taskpool: child decode failed: %w", err)
		}
		if env.Shutdown {
			return enc.Encode(wireMessage{Tag: msgShutdown, Instant: time.Now()})
		}
		runRemoteTask(registry, env, enc)
	}
}

func runRemoteTask(registry *Registry, env taskEnvelope, enc *gob.Encoder) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in remote task: %v", r)
			_ = enc.Encode(wireMessage{
				Tag: msgException, TaskID: env.TaskID, Instant: time.Now(),
				Err: newWireError(err, renderTraceback(debug.Stack())),
			})
		}
	}()

	target, ok := registry.Lookup(env.Kind)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
		_ = enc.Encode(wireMessage{
			Tag: msgException, TaskID: env.TaskID, Instant: time.Now(),
			Err: newWireError(err, renderTraceback(debug.Stack())),
		})
		return
	}

	_ = enc.Encode(wireMessage{Tag: msgRunning, TaskID: env.TaskID, Instant: time.Now()})
	result, err := target(env.Args...)
	if err != nil {
		_ = enc.Encode(wireMessage{
			Tag: msgException, TaskID: env.TaskID, Instant: time.Now(),
			Err: newWireError(err, renderTraceback(debug.Stack())),
		})
		return
	}
	_ = enc.Encode(wireMessage{Tag: msgResult, TaskID: env.TaskID, Instant: time.Now(), Result: result})
}

// renderTraceback formats a captured call stack into the same
// "file:line" backtrace text regardless of whether it was captured at
// a panic's recover site or at a plain error return; both paths route
// through here so every RemoteError.Traceback looks the same.
func renderTraceback(stack []byte) string {
	return string(stack)
}
