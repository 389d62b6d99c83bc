// Package driver runs the retrieval-request loop for one inventory
// partition: resume from the cursor, stream rows, submit one retrieval job
// per unprocessed row, and record durable progress after each submission.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eunmann/glacier-restager/internal/logctx"
	"github.com/eunmann/glacier-restager/pkg/chunk"
	"github.com/eunmann/glacier-restager/pkg/config"
	"github.com/eunmann/glacier-restager/pkg/humanfmt"
	"github.com/eunmann/glacier-restager/pkg/inventory"
	"github.com/eunmann/glacier-restager/pkg/metrics"
	"github.com/eunmann/glacier-restager/pkg/status"
)

// Batch is the scheduler-facing payload: the driver consumes NextPartition,
// processes it fully, and hands back the batch with NextPartition advanced
// by one. On failure the batch comes back unchanged so the caller re-invokes
// the same partition.
type Batch struct {
	NextPartition int
	MaxPartition  int
}

// InventorySource streams one partition's rows in ascending row order.
type InventorySource interface {
	StreamPartition(ctx context.Context, partitionID int) (inventory.Iterator, error)
}

// JobSubmitter starts one retrieval job per archive.
type JobSubmitter interface {
	Submit(ctx context.Context, archiveID string) (string, error)
}

// NameResolver assigns a collision-free display filename for a row.
type NameResolver interface {
	Resolve(ctx context.Context, archiveID, description, creationDate string, seen map[string]struct{}) (string, bool, error)
}

// Deps collects the driver's collaborators.
type Deps struct {
	Source    InventorySource
	Resolver  NameResolver
	Submitter JobSubmitter
	Store     status.Store
	Metrics   *metrics.Metrics
}

// Driver processes partitions one at a time. Rows within a partition are
// strictly sequential: each row's submit-and-record cycle completes before
// the next row starts, so the persisted cursor is exact at any failure
// point.
type Driver struct {
	cfg  config.Config
	deps Deps
	now  func() time.Time
}

// New creates a Driver. All dependencies are required.
func New(cfg config.Config, deps Deps) (*Driver, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("driver: inventory source is required")
	case deps.Resolver == nil:
		return nil, errors.New("driver: name resolver is required")
	case deps.Submitter == nil:
		return nil, errors.New("driver: job submitter is required")
	case deps.Store == nil:
		return nil, errors.New("driver: status store is required")
	case deps.Metrics == nil:
		return nil, errors.New("driver: metrics are required")
	}

	return &Driver{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}, nil
}

// ProcessPartition handles batch.NextPartition end to end and returns the
// batch with NextPartition incremented. Any error aborts the whole partition
// and returns the batch unchanged; rows recorded before the failure stay
// recorded and are skipped on re-invocation.
func (d *Driver) ProcessPartition(ctx context.Context, batch Batch) (Batch, error) {
	partitionID := batch.NextPartition
	ctx = logctx.WithPartition(ctx, partitionID)
	logger := logctx.FromContext(ctx)
	start := d.now()

	stats, err := d.processRows(ctx, partitionID)
	if err != nil {
		d.deps.Metrics.PartitionsFailed.Inc()
		return batch, err
	}

	d.deps.Metrics.PartitionsCompleted.Inc()
	logger.Info().
		Int64("rows_submitted", stats.submitted).
		Int64("rows_skipped", stats.skipped).
		Str("bytes_requested", humanfmt.Bytes(stats.bytes)).
		Str("elapsed", humanfmt.Duration(d.now().Sub(start))).
		Msg("partition complete")

	return Batch{NextPartition: partitionID + 1, MaxPartition: batch.MaxPartition}, nil
}

// rowStats accumulates per-partition progress for the summary log.
type rowStats struct {
	submitted int64
	skipped   int64
	bytes     int64
}

func (d *Driver) processRows(ctx context.Context, partitionID int) (rowStats, error) {
	var stats rowStats
	logger := logctx.FromContext(ctx)

	cursor, err := d.deps.Store.MaxRowNum(ctx, partitionID)
	if err != nil {
		return stats, fmt.Errorf("partition %d: resume cursor: %w", partitionID, err)
	}
	logger.Debug().Int64("cursor", cursor).Msg("resuming partition")

	it, err := d.deps.Source.StreamPartition(ctx, partitionID)
	if err != nil {
		return stats, fmt.Errorf("partition %d: stream inventory: %w", partitionID, err)
	}
	defer it.Close()

	// Names assigned during this run; the persisted index alone can lag
	// behind our own writes.
	seen := make(map[string]struct{})

	for it.Next() {
		row := it.Row()

		if row.RowNum <= cursor {
			stats.skipped++
			d.deps.Metrics.RowsSkipped.Inc()
			continue
		}

		if err := d.processRow(ctx, partitionID, row, seen); err != nil {
			return stats, fmt.Errorf("partition %d row %d: %w", partitionID, row.RowNum, err)
		}

		cursor = row.RowNum
		stats.submitted++
		stats.bytes += row.SizeBytes
	}
	if err := it.Err(); err != nil {
		return stats, fmt.Errorf("partition %d: iterate inventory: %w", partitionID, err)
	}

	return stats, nil
}

// processRow runs one row's cycle: resolve name, submit the retrieval job,
// plan chunks, persist the status record. The record write is last; a row
// counts as processed only once it is durable.
func (d *Driver) processRow(ctx context.Context, partitionID int, row inventory.Row, seen map[string]struct{}) error {
	logger := logctx.FromContext(ctx)

	fileName, disambiguated, err := d.deps.Resolver.Resolve(ctx, row.ArchiveID, row.Description, row.CreationDate, seen)
	if err != nil {
		return fmt.Errorf("resolve name: %w", err)
	}
	seen[fileName] = struct{}{}
	if disambiguated {
		d.deps.Metrics.NameCollisions.Inc()
	}

	jobID, err := d.deps.Submitter.Submit(ctx, row.ArchiveID)
	if err != nil {
		return fmt.Errorf("submit retrieval: %w", err)
	}

	chunks, err := chunk.Count(row.SizeBytes, d.cfg.ChunkSizeBytes)
	if err != nil {
		return fmt.Errorf("plan chunks: %w", err)
	}

	rec := status.Record{
		ArchiveID:      row.ArchiveID,
		JobID:          jobID,
		PartitionID:    partitionID,
		RowNum:         row.RowNum,
		SHA256TreeHash: row.SHA256TreeHash,
		SizeBytes:      row.SizeBytes,
		RequestedAt:    d.now().UTC().Format(time.RFC3339),
		Description:    row.Description,
		FileName:       fileName,
		ChunkCount:     chunks,
		RetryCount:     0,
	}
	if err := d.deps.Store.Put(ctx, rec); err != nil {
		return fmt.Errorf("record progress: %w", err)
	}

	d.deps.Metrics.RowsSubmitted.Inc()
	d.deps.Metrics.BytesRequested.Add(float64(row.SizeBytes))
	logger.Debug().
		Int64("row", row.RowNum).
		Str("archive_id", row.ArchiveID).
		Str("job_id", jobID).
		Str("file_name", fileName).
		Int("chunks", chunks).
		Msg("retrieval requested")

	return nil
}
