// Package status persists the durable per-archive progress records that make
// partition runs resumable.
package status

import "context"

// Record is the durable unit of progress: one per archive, written after the
// retrieval job for that archive was submitted. Keyed by ArchiveID; the
// store also serves descending lookups by (PartitionID, RowNum) and
// existence checks by FileName.
type Record struct {
	ArchiveID      string `dynamodbav:"archive_id"`
	JobID          string `dynamodbav:"job_id"`
	PartitionID    int    `dynamodbav:"partition_id"`
	RowNum         int64  `dynamodbav:"row_num"`
	SHA256TreeHash string `dynamodbav:"sha256_tree_hash"`
	SizeBytes      int64  `dynamodbav:"size_bytes"`
	RequestedAt    string `dynamodbav:"requested_at"`
	Description    string `dynamodbav:"description"`
	FileName       string `dynamodbav:"file_name"`
	ChunkCount     int    `dynamodbav:"chunk_count"`

	// RetryCount is always written as 0 here. The later validation stage
	// owns incrementing it.
	RetryCount int `dynamodbav:"retry_count"`
}

// Store is the keyed status store. Implementations must support concurrent
// writers across partitions without coordination.
type Store interface {
	// Put writes or overwrites the record for rec.ArchiveID. Overwrites
	// happen only when index lag made the cursor re-admit an
	// already-processed row; the rewritten record carries the newer job
	// handle.
	Put(ctx context.Context, rec Record) error

	// MaxRowNum returns the highest row number recorded for the
	// partition, 0 when the partition has no records. A lagging index may
	// return a stale, lower value; it never returns a higher one.
	MaxRowNum(ctx context.Context, partitionID int) (int64, error)

	// FileNameExists reports whether any record holds the given filename.
	FileNameExists(ctx context.Context, name string) (bool, error)
}
