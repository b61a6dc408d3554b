// Command taskpoolctl is a small operator-facing front end for the
// taskpool package: it runs a demo workload against a Local or Remote
// pool and, optionally, serves its Prometheus metrics, the way
// beaver-raft's CLI drives its queue system end-to-end from one
// binary.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tohafrit/taskpool/internal/example"
	"github.com/tohafrit/taskpool/taskpool"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "taskpoolctl:", err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskpoolctl",
		Short: "Drive and inspect a taskpool worker pool",
		Version: "0.1.0",
	}
	root.AddCommand(buildRunCommand())
	root.AddCommand(buildServeMetricsCommand())
	return root
}

func buildRunCommand() *cobra.Command {
	var remote bool
	var workers int
	var items int
	var metricsAddr string
	var workerBin string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a demo sum workload and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(workers, items, remote, workerBin, metricsAddr)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "use out-of-process workers instead of goroutines")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of workers")
	cmd.Flags().IntVar(&items, "items", 20, "number of demo tasks to submit")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address while the demo runs")
	cmd.Flags().StringVar(&workerBin, "worker-bin", "taskpoolworker", "path to the taskpoolworker binary (remote mode only)")
	return cmd
}

func buildServeMetricsCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Run a Local demo pool and serve its metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveMetricsDemo(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9464", "address to serve /metrics on")
	return cmd
}

func runDemo(workers, items int, remote bool, workerBin, metricsAddr string) error {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := taskpool.DefaultConfig()
	cfg.Name = "taskpoolctl-demo"
	cfg.Workers = workers
	cfg.Logger = logger

	metrics := taskpool.NewMetricsCollector(cfg.Name)
	cfg.Metrics = metrics

	if remote {
		registry := taskpool.NewRegistry()
		example.Register(registry)
		cfg.WorkerType = taskpool.Remote
		cfg.RemoteCommand = []string{workerBin}
		cfg.Registry = registry
	}

	pool, err := taskpool.New(cfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Shutdown()

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, metrics)
	}

	futures := make([]*taskpool.Future, items)
	for i := 0; i < items; i++ {
		i := i
		if remote {
			f, err := pool.SubmitRemote("sum", taskpool.Args{i, i + 1})
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			futures[i] = f
			continue
		}
		f, err := pool.Submit(func(args ...any) (any, error) {
			return i + i + 1, nil
		})
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		futures[i] = f
	}

	results, err := taskpool.Collect(futures, nil)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	for i, r := range results {
		fmt.Printf("task %d => %v\n", i, r)
	}
	return nil
}

func serveMetricsDemo(addr string) error {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := taskpool.DefaultConfig()
	cfg.Name = "taskpoolctl-serve"
	cfg.Logger = logger
	metrics := taskpool.NewMetricsCollector(cfg.Name)
	cfg.Metrics = metrics

	pool, err := taskpool.New(cfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Shutdown()
	taskpool.Activate()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			time.Sleep(time.Second)
			metrics.Observe(pool.Stats())
		}
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	go serveMetrics(addr, metrics)

	<-sig
	return nil
}

func serveMetrics(addr string, metrics *taskpool.MetricsCollector) {
	http.Handle("/metrics", metrics.Handler())
	_ = http.ListenAndServe(addr, nil)
}
