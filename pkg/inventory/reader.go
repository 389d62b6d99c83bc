package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eunmann/glacier-restager/internal/logctx"
	"github.com/eunmann/glacier-restager/pkg/config"
)

// ErrQueryFailed marks a query execution that reached a non-success terminal
// state. The partition must be re-invoked; the cursor makes that safe.
var ErrQueryFailed = errors.New("inventory query failed")

// ErrQueryWaitExceeded marks a query that did not reach a terminal state
// within the configured ceiling.
var ErrQueryWaitExceeded = errors.New("inventory query wait ceiling exceeded")

// QueryAPI is the subset of the Athena client used by the Reader.
type QueryAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

// ResultFetcher is the subset of the S3 client used to stream query results.
type ResultFetcher interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Reader streams one partition's inventory rows by running a query against
// the inventory table and reading the result object back from the staging
// bucket.
type Reader struct {
	athena QueryAPI
	s3     ResultFetcher
	cfg    config.Config
}

// NewReader creates a Reader from pre-built clients.
func NewReader(queryClient QueryAPI, fetcher ResultFetcher, cfg config.Config) *Reader {
	return &Reader{athena: queryClient, s3: fetcher, cfg: cfg}
}

// NewReaderFromAWSConfig creates a Reader with Athena and S3 clients built
// from the given AWS config.
func NewReaderFromAWSConfig(awsCfg aws.Config, cfg config.Config) *Reader {
	return NewReader(athena.NewFromConfig(awsCfg), s3.NewFromConfig(awsCfg), cfg)
}

// StreamPartition runs one query execution for the partition and returns an
// iterator over its rows, sorted ascending by row number. One query per
// partition; the caller owns closing the iterator.
func (r *Reader) StreamPartition(ctx context.Context, partitionID int) (Iterator, error) {
	logger := logctx.FromContext(ctx)

	sql := fmt.Sprintf(
		`SELECT row_num, size, archiveid, sha256treehash, archivedescription, creationdate `+
			`FROM "%s"."%s" WHERE part = %d ORDER BY row_num ASC`,
		r.cfg.Database, r.cfg.Table, partitionID)

	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(r.cfg.Database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(r.cfg.StagingURI()),
		},
	}
	if r.cfg.Workgroup != "" {
		input.WorkGroup = aws.String(r.cfg.Workgroup)
	}

	started, err := r.athena.StartQueryExecution(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("start inventory query for partition %d: %w", partitionID, err)
	}
	queryID := aws.ToString(started.QueryExecutionId)
	logger.Debug().Str("query_id", queryID).Msg("inventory query started")

	if err := r.waitForQuery(ctx, queryID); err != nil {
		return nil, err
	}

	key := r.cfg.StagingPrefix + queryID + ".csv"
	obj, err := r.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.StagingBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch query result s3://%s/%s: %w", r.cfg.StagingBucket, key, err)
	}

	it, err := NewRowIterator(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("open query result for partition %d: %w", partitionID, err)
	}
	return it, nil
}

// waitForQuery polls the query execution until it reaches a terminal state.
// The wait is a plain timer sleep between checks, cancellable through ctx,
// and bounded by MaxQueryWait when that is set.
func (r *Reader) waitForQuery(ctx context.Context, queryID string) error {
	logger := logctx.FromContext(ctx)

	var deadline time.Time
	if r.cfg.MaxQueryWait > 0 {
		deadline = time.Now().Add(r.cfg.MaxQueryWait)
	}

	for {
		out, err := r.athena.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(queryID),
		})
		if err != nil {
			return fmt.Errorf("poll query %s: %w", queryID, err)
		}

		var state athenatypes.QueryExecutionState
		var reason string
		if out.QueryExecution != nil && out.QueryExecution.Status != nil {
			state = out.QueryExecution.Status.State
			reason = aws.ToString(out.QueryExecution.Status.StateChangeReason)
		}

		switch state {
		case athenatypes.QueryExecutionStateSucceeded:
			return nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			return fmt.Errorf("query %s entered state %s (%s): %w", queryID, state, reason, ErrQueryFailed)
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("query %s still %s after %v: %w",
				queryID, state, r.cfg.MaxQueryWait, ErrQueryWaitExceeded)
		}

		logger.Debug().Str("query_id", queryID).Str("state", string(state)).Msg("query not terminal yet")

		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for query %s: %w", queryID, ctx.Err())
		case <-timer.C:
		}
	}
}
