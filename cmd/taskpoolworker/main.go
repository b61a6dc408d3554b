// Command taskpoolworker is the out-of-process child started by a
// Remote taskpool.Pool. It registers the same task kinds the parent
// registered and serves them over stdin/stdout until the parent sends
// a shutdown envelope.
//
// Real users of the taskpool package build their own worker binary
// importing whatever kinds their workload needs; this binary only
// demonstrates the handful of kinds exercised by the example pool in
// cmd/taskpoolctl.
package main

import (
	"fmt"
	"os"

	"github.com/tohafrit/taskpool/internal/example"
	"github.com/tohafrit/taskpool/taskpool"
)

func main() {
	registry := taskpool.NewRegistry()
	example.Register(registry)

	if err := taskpool.ServeRemote(registry, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "taskpoolworker:", err)
		os.Exit(1)
	}
}
