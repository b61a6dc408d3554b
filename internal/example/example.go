// Package example provides the task kinds shared by cmd/taskpoolctl and
// cmd/taskpoolworker, so the two binaries agree on what a Remote pool
// can dispatch.
package example

import (
	"encoding/gob"
	"fmt"
	"time"

	"github.com/tohafrit/taskpool/taskpool"
)

func init() {
	// gob transmits interface values by a registered type name; every
	// concrete type that flows through Args/Result across the process
	// boundary needs one entry here, including built-ins.
	gob.Register(0)
	gob.Register(0.0)
	gob.Register("")
}

// Register adds this package's task kinds to registry. Call it
// identically in the parent process and in the taskpoolworker child.
func Register(registry *taskpool.Registry) {
	registry.Register("sum", sum)
	registry.Register("sleep", sleep)
}

func sum(args ...any) (any, error) {
	total := 0.0
	for _, a := range args {
		switch v := a.(type) {
		case int:
			total += float64(v)
		case float64:
			total += v
		default:
			return nil, fmt.Errorf("example.sum: unsupported argument type %T", a)
		}
	}
	return total, nil
}

func sleep(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("example.sleep: expected exactly one duration argument")
	}
	ms, ok := args[0].(int)
	if !ok {
		return nil, fmt.Errorf("example.sleep: expected an int millisecond count, got %T", args[0])
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return ms, nil
}
