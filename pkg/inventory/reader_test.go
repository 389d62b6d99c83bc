package inventory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eunmann/glacier-restager/pkg/config"
)

// fakeQueryAPI walks through a fixed sequence of execution states, one per
// poll.
type fakeQueryAPI struct {
	states   []athenatypes.QueryExecutionState
	reason   string
	startErr error

	startedSQL string
	polls      int
}

func (f *fakeQueryAPI) StartQueryExecution(_ context.Context, params *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.startedSQL = aws.ToString(params.QueryString)
	return &athena.StartQueryExecutionOutput{
		QueryExecutionId: aws.String("query-1"),
	}, nil
}

func (f *fakeQueryAPI) GetQueryExecution(_ context.Context, _ *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	state := f.states[len(f.states)-1]
	if f.polls < len(f.states) {
		state = f.states[f.polls]
	}
	f.polls++

	return &athena.GetQueryExecutionOutput{
		QueryExecution: &athenatypes.QueryExecution{
			Status: &athenatypes.QueryExecutionStatus{
				State:             state,
				StateChangeReason: aws.String(f.reason),
			},
		},
	}, nil
}

// fakeFetcher serves one CSV body and records the requested key.
type fakeFetcher struct {
	body string
	err  error

	bucket, key string
}

func (f *fakeFetcher) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(params.Bucket)
	f.key = aws.ToString(params.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.PollInterval = time.Millisecond
	cfg.MaxQueryWait = 0
	cfg.Database = "inventorydb"
	cfg.Table = "inventory"
	cfg.StagingBucket = "staging"
	cfg.StagingPrefix = "results/"
	return cfg
}

func TestStreamPartition_Success(t *testing.T) {
	queries := &fakeQueryAPI{states: []athenatypes.QueryExecutionState{
		athenatypes.QueryExecutionStateQueued,
		athenatypes.QueryExecutionStateRunning,
		athenatypes.QueryExecutionStateSucceeded,
	}}
	fetcher := &fakeFetcher{body: header + "1,100,arch-1,h1,a,2012-05-01T12:00:00Z\n"}

	r := NewReader(queries, fetcher, testConfig())

	it, err := r.StreamPartition(context.Background(), 7)
	if err != nil {
		t.Fatalf("StreamPartition: %v", err)
	}
	defer it.Close()

	if !strings.Contains(queries.startedSQL, "WHERE part = 7") {
		t.Errorf("query not scoped to partition: %q", queries.startedSQL)
	}
	if !strings.Contains(queries.startedSQL, "ORDER BY row_num ASC") {
		t.Errorf("query not ordered: %q", queries.startedSQL)
	}
	if queries.polls != 3 {
		t.Errorf("polls = %d, want 3", queries.polls)
	}
	if fetcher.bucket != "staging" || fetcher.key != "results/query-1.csv" {
		t.Errorf("fetched s3://%s/%s, want s3://staging/results/query-1.csv", fetcher.bucket, fetcher.key)
	}

	var rows []Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(rows) != 1 || rows[0].ArchiveID != "arch-1" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestStreamPartition_QueryFailed(t *testing.T) {
	queries := &fakeQueryAPI{
		states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateFailed},
		reason: "table not found",
	}
	fetcher := &fakeFetcher{}

	r := NewReader(queries, fetcher, testConfig())

	_, err := r.StreamPartition(context.Background(), 1)
	if !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("err = %v, want ErrQueryFailed", err)
	}
	if !strings.Contains(err.Error(), "table not found") {
		t.Errorf("err = %v, want state change reason included", err)
	}
	if fetcher.key != "" {
		t.Error("result should not be fetched for a failed query")
	}
}

func TestStreamPartition_QueryCancelled(t *testing.T) {
	queries := &fakeQueryAPI{
		states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateCancelled},
	}

	r := NewReader(queries, &fakeFetcher{}, testConfig())

	_, err := r.StreamPartition(context.Background(), 1)
	if !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("err = %v, want ErrQueryFailed", err)
	}
}

func TestStreamPartition_StartError(t *testing.T) {
	queries := &fakeQueryAPI{startErr: errors.New("throttled")}

	r := NewReader(queries, &fakeFetcher{}, testConfig())

	_, err := r.StreamPartition(context.Background(), 1)
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("err = %v, want start error", err)
	}
}

func TestStreamPartition_WaitCeiling(t *testing.T) {
	queries := &fakeQueryAPI{states: []athenatypes.QueryExecutionState{
		athenatypes.QueryExecutionStateRunning,
	}}

	cfg := testConfig()
	cfg.MaxQueryWait = 5 * time.Millisecond

	r := NewReader(queries, &fakeFetcher{}, cfg)

	_, err := r.StreamPartition(context.Background(), 1)
	if !errors.Is(err, ErrQueryWaitExceeded) {
		t.Fatalf("err = %v, want ErrQueryWaitExceeded", err)
	}
}

func TestStreamPartition_ContextCancelled(t *testing.T) {
	queries := &fakeQueryAPI{states: []athenatypes.QueryExecutionState{
		athenatypes.QueryExecutionStateRunning,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader(queries, &fakeFetcher{}, testConfig())

	_, err := r.StreamPartition(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStreamPartition_FetchError(t *testing.T) {
	queries := &fakeQueryAPI{states: []athenatypes.QueryExecutionState{
		athenatypes.QueryExecutionStateSucceeded,
	}}
	fetcher := &fakeFetcher{err: errors.New("no such key")}

	r := NewReader(queries, fetcher, testConfig())

	_, err := r.StreamPartition(context.Background(), 1)
	if err == nil || !strings.Contains(err.Error(), "no such key") {
		t.Errorf("err = %v, want fetch error", err)
	}
}
