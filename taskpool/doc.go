// Package taskpool provides a worker-pool runtime for concurrent and
// parallel task execution in Go.
//
// Tasks are submitted as plain functions and come back as a Future that
// tracks pending/running/completed/failed/cancelled state, timing, and
// supports callbacks and blocking collection of the result.
//
// Two worker kinds are supported:
//   - in-process workers run on their own goroutine, good for I/O-bound
//     or lightweight CPU-bound concurrent work;
//   - out-of-process workers run in a child process started via
//     os/exec, giving true parallelism and crash isolation at the cost
//     of a declared task-kind registry (see Registry) instead of
//     arbitrary closures.
//
// # Basic usage
//
//	pool, err := taskpool.New(taskpool.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown()
//
//	future, err := pool.Submit(func(args ...any) (any, error) { return 1 + 2, nil })
//	result, err := future.Collect(nil)
//
// # Map and Starmap
//
//	results, err := pool.Map(square, 1, 4, nil, []any{0, 1, 2, 3})
//	for r := range results {
//	    fmt.Println(r.Value, r.Err)
//	}
//
// # Statistics and metrics
//
//	stats := pool.Stats()
//	collector := taskpool.NewMetricsCollector(cfg.Name)
//	cfg.Metrics = collector
package taskpool
