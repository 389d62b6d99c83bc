// Package cli implements the command-line interface for glacier-restager.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eunmann/glacier-restager/internal/logctx"
	"github.com/eunmann/glacier-restager/pkg/chunk"
	"github.com/eunmann/glacier-restager/pkg/config"
	"github.com/eunmann/glacier-restager/pkg/driver"
	"github.com/eunmann/glacier-restager/pkg/inventory"
	"github.com/eunmann/glacier-restager/pkg/metrics"
	"github.com/eunmann/glacier-restager/pkg/names"
	"github.com/eunmann/glacier-restager/pkg/retrieval"
	"github.com/eunmann/glacier-restager/pkg/status"
)

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: glacier-restager <command> [options]\ncommands: run, chunks")
	}

	switch args[0] {
	case "run":
		return runRestage(args[1:])
	case "chunks":
		return runChunks(args[1:])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func runRestage(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	next := fs.Int("next", -1, "first partition to process")
	max := fs.Int("max", -1, "last partition to process")
	dryRun := fs.Bool("dry-run", false, "use an in-memory store and skip all AWS calls")
	inventoryFile := fs.String("inventory", "", "local inventory CSV for dry runs")
	metricsAddr := fs.String("metrics-addr", "", "address for the Prometheus metrics endpoint (e.g. :9090)")
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-friendly console log output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *next < 0 {
		return errors.New("--next is required and must be >= 0")
	}
	if *max < *next {
		return errors.New("--max is required and must be >= --next")
	}

	ctx := context.Background()
	logger := logctx.NewConfiguredLogger(*debug, *human)
	logger = logger.With().Str("run_id", uuid.NewString()).Logger()
	ctx = logctx.WithLogger(ctx, logger)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if *metricsAddr != "" {
		serveMetrics(ctx, *metricsAddr, reg)
	}

	cfg := config.FromEnv()

	var deps driver.Deps
	if *dryRun {
		if *inventoryFile == "" {
			return errors.New("--inventory is required for a dry run")
		}
		store := status.NewMemStore()
		deps = driver.Deps{
			Source:    &localSource{path: *inventoryFile},
			Resolver:  names.NewResolver(store),
			Submitter: &dryRunSubmitter{},
			Store:     store,
			Metrics:   m,
		}
	} else {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}

		store := status.NewDynamoStoreFromAWSConfig(awsCfg, cfg.StatusTable)
		deps = driver.Deps{
			Source:    inventory.NewReaderFromAWSConfig(awsCfg, cfg),
			Resolver:  names.NewResolver(store),
			Submitter: retrieval.NewSubmitterFromAWSConfig(awsCfg, cfg),
			Store:     store,
			Metrics:   m,
		}
	}

	drv, err := driver.New(cfg, deps)
	if err != nil {
		return err
	}

	batch := driver.Batch{NextPartition: *next, MaxPartition: *max}
	for batch.NextPartition <= batch.MaxPartition {
		// On failure the batch comes back unchanged; the next invocation
		// resumes at the failed partition.
		batch, err = drv.ProcessPartition(ctx, batch)
		if err != nil {
			return err
		}
	}

	logger.Info().
		Int("first_partition", *next).
		Int("last_partition", *max).
		Msg("all partitions processed")
	return nil
}

// serveMetrics exposes the registry over HTTP in the background. A failing
// listener only loses observability, so it logs instead of aborting the run.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	logger := logctx.FromContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
		}
	}()
}

func runChunks(args []string) error {
	fs := flag.NewFlagSet("chunks", flag.ContinueOnError)
	size := fs.Int64("size", -1, "archive size in bytes")
	chunkSize := fs.Int64("chunk-size", config.Default().ChunkSizeBytes, "chunk size in bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *size < 0 {
		return errors.New("--size is required and must be >= 0")
	}

	n, err := chunk.Count(*size, *chunkSize)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, n)
	return nil
}
