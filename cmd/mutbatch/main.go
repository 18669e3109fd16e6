package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	httpAdapter "github.com/bft-labs/mutbatch/internal/adapters/http"
	"github.com/bft-labs/mutbatch/internal/cliconfig"
	"github.com/bft-labs/mutbatch/pkg/log"
	"github.com/bft-labs/mutbatch/pkg/mutbatch"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

const longHelp = `Load row mutations from a JSON-lines file into a Bigtable table.

Writes are grouped into MutateRows batches bounded by mutation count and
bytes, with a cap on batches in flight and on bytes not yet acknowledged.
Reading pauses while the caps are reached. Progress is checkpointed so an
interrupted load resumes where it stopped.

Each input line is one row:
  {"row":"user#1","mutations":[{"type":"set_cell","family":"cf","column":"name","value":"ada"}]}`

var exampleUsage = strings.TrimSpace(`
  mutbatch --input rows.jsonl --table projects/p/instances/i/tables/t
  mutbatch --input rows.jsonl --endpoint localhost:8086 --insecure --project p --instance i --table-id t
  mutbatch --input rows.jsonl --transport memory --memory-failure-rate 0.1
  mutbatch emulator --listen :8086
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return mutbatch.Version
}

// applier is a BulkApplier whose in-flight calls can be waited on.
type applier interface {
	transport.BulkApplier
	Wait()
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		el := cliconfig.ErrorLogger()
		el.Error().Err(err).Msg("mutbatch")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:          "mutbatch",
		Short:        "Batch row mutations into Bigtable with admission control",
		Long:         longHelp,
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// MUTBATCH_* override the file; explicit flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runLoad(cfg)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.mutbatch/config.toml)")

	root.Flags().StringVar(&cfg.Input, "input", cfg.Input, "JSON-lines file of row mutations")
	root.Flags().BoolVar(&cfg.Follow, "follow", cfg.Follow, "keep reading as the input grows")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for checkpoint.json (defaults to the input's directory)")
	root.Flags().IntVar(&cfg.CheckpointEvery, "checkpoint-every", cfg.CheckpointEvery, "resolved records between checkpoint saves")
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "poll interval for --follow without file notifications")

	root.Flags().StringVar(&cfg.Transport, "transport", cfg.Transport, "grpc or memory")
	root.Flags().StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Bigtable data endpoint host:port")
	root.Flags().BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "disable TLS (emulator)")
	root.Flags().StringVar(&cfg.Project, "project", cfg.Project, "project ID")
	root.Flags().StringVar(&cfg.Instance, "instance", cfg.Instance, "instance ID")
	root.Flags().StringVar(&cfg.TableID, "table-id", cfg.TableID, "table ID")
	root.Flags().StringVar(&cfg.Table, "table", cfg.Table, "full table name projects/P/instances/I/tables/T")
	root.Flags().StringVar(&cfg.AppProfile, "app-profile", cfg.AppProfile, "app profile ID")
	root.Flags().StringVar(&cfg.Compression, "compression", cfg.Compression, "request compression: none, gzip or zstd")

	root.Flags().DurationVar(&cfg.RPCTimeout, "rpc-timeout", cfg.RPCTimeout, "timeout for one MutateRows attempt")
	root.Flags().IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "attempts per batch, including the first")
	root.Flags().DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "initial retry backoff")
	root.Flags().DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "maximum retry backoff")

	root.Flags().IntVar(&cfg.MaxMutationsPerBatch, "max-mutations-per-batch", cfg.MaxMutationsPerBatch, "cell mutations per batch")
	root.Flags().Int64Var(&cfg.MaxBytesPerBatch, "max-bytes-per-batch", cfg.MaxBytesPerBatch, "serialized bytes per batch")
	root.Flags().IntVar(&cfg.MaxBatches, "max-batches", cfg.MaxBatches, "batches in flight")
	root.Flags().Int64Var(&cfg.MaxOutstandingBytes, "max-outstanding-bytes", cfg.MaxOutstandingBytes, "bytes admitted and not yet acknowledged")

	root.Flags().Float64Var(&cfg.MemoryFailureRate, "memory-failure-rate", cfg.MemoryFailureRate, "fraction of entries the memory transport fails with UNAVAILABLE")
	if err := root.Flags().MarkHidden("memory-failure-rate"); err != nil {
		el := cliconfig.ErrorLogger()
		el.Error().Err(err).Msg("failed to hide memory-failure-rate flag")
	}

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for the Prometheus /metrics endpoint (disabled if empty)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	root.AddCommand(newEmulatorCommand())
	return root
}

func runLoad(cfg cliconfig.Config) error {
	zl, err := cliconfig.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	zl.Info().Interface("config", cfg).Msg("configuration")
	logger := log.NewZerologAdapterWithLogger(zl)

	a, closeTransport, err := buildApplier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	svc, err := mutbatch.New(mutbatch.Config{
		InputPath:       cfg.Input,
		Follow:          cfg.Follow,
		StateDir:        cfg.StateDir,
		CheckpointEvery: cfg.CheckpointEvery,
		PollInterval:    cfg.PollInterval,
		Limits:          cfg.BatcherOptions(),
	},
		mutbatch.WithApplier(a),
		mutbatch.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	var g errgroup.Group
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return httpAdapter.NewMetricsServer(logger).ListenAndServe(metricsCtx, cfg.MetricsAddr)
		})
	}

	if err := svc.Start(context.Background()); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	loadErr := make(chan error, 1)
	go func() { loadErr <- svc.Wait(context.Background()) }()

	var runErr error
	select {
	case <-ctx.Done():
		zl.Info().Msg("received signal, stopping...")
		if err := svc.Stop(); err != nil {
			runErr = fmt.Errorf("stop: %w", err)
		}
		<-loadErr
	case runErr = <-loadErr:
	}

	a.Wait()
	stopMetrics()
	if err := g.Wait(); err != nil {
		zl.Warn().Err(err).Msg("metrics server")
	}

	p := svc.Progress()
	zl.Info().
		Int64("records", p.Records).
		Int64("succeeded", p.Succeeded).
		Int64("failed", p.Failed).
		Int64("offset", p.Offset).
		Msg("done")

	if svc.Status() == mutbatch.StateCrashed && runErr == nil {
		runErr = errors.New("load crashed")
	}
	return runErr
}

// buildApplier returns the configured transport and a func releasing it.
func buildApplier(cfg cliconfig.Config, logger log.Logger) (applier, func(), error) {
	logger = log.OrNoop(logger)
	opts := []transport.Option{
		transport.WithRetryPolicy(cfg.RetryPolicy()),
		transport.WithLogger(logger),
	}

	switch cfg.Transport {
	case cliconfig.TransportMemory:
		if cfg.MemoryFailureRate > 0 {
			opts = append(opts, transport.WithFailureInjection(cfg.MemoryFailureRate, codes.Unavailable))
		}
		return transport.NewMemoryApplier(transport.NewMemoryTable(), opts...), func() {}, nil
	default:
		table, err := transport.ParseTableName(cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		conn, err := transport.Dial(cfg.Endpoint, cfg.Insecure)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts,
			transport.WithAttemptTimeout(cfg.RPCTimeout),
			transport.WithAppProfile(cfg.AppProfile),
		)
		if cfg.Compression != "" && cfg.Compression != "none" {
			opts = append(opts, transport.WithCompressor(cfg.Compression))
		}
		closeConn := func() {
			if err := conn.Close(); err != nil {
				logger.Warn("close connection", log.Err(err))
			}
		}
		return transport.NewBigtableApplier(conn, table, opts...), closeConn, nil
	}
}

func newEmulatorCommand() *cobra.Command {
	var (
		listen      string
		chunkSize   int
		failureRate float64
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "emulator",
		Short: "Serve an in-memory MutateRows endpoint for local loads",
		RunE: func(cmd *cobra.Command, args []string) error {
			zl, err := cliconfig.NewLogger(logLevel)
			if err != nil {
				return err
			}
			logger := log.NewZerologAdapterWithLogger(zl.With().Str("component", "emulator").Logger())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}

			table := transport.NewMemoryTable()
			srv := transport.NewEmulatorServer(table, transport.WithLogger(logger), transport.WithChunkSize(chunkSize))
			if failureRate > 0 {
				srv.SetFault(transport.RandomFault(failureRate, codes.Unavailable, time.Now().UnixNano()))
			}

			err = srv.Serve(ctx, lis)
			zl.Info().Int("rows", table.RowCount()).Msg("emulator stopped")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8086", "address to serve on")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 100, "response entries per MutateRows message")
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0, "fraction of entries failed with UNAVAILABLE")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}
