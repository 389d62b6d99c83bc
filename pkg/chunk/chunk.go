// Package chunk plans how an archive's bytes will be split into fixed-size
// transfer chunks by the download stage.
package chunk

import (
	"errors"
	"fmt"
)

// ErrNegativeSize is returned when an object size is negative.
var ErrNegativeSize = errors.New("negative object size")

// ErrChunkSize is returned when the chunk size is not positive.
var ErrChunkSize = errors.New("chunk size must be positive")

// Count returns the number of chunkSize-byte chunks needed to hold sizeBytes.
// A zero-byte archive needs zero chunks; any trailing remainder needs one
// more.
func Count(sizeBytes, chunkSize int64) (int, error) {
	if sizeBytes < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeSize, sizeBytes)
	}
	if chunkSize <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrChunkSize, chunkSize)
	}

	n := sizeBytes / chunkSize
	if sizeBytes%chunkSize != 0 {
		n++
	}
	return int(n), nil
}
