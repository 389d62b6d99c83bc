package chunk

import (
	"errors"
	"testing"
)

func TestCount(t *testing.T) {
	const chunkSize = 1 << 20

	tests := []struct {
		name string
		size int64
		want int
	}{
		{"zero bytes needs zero chunks", 0, 0},
		{"one byte", 1, 1},
		{"below one chunk", chunkSize - 1, 1},
		{"exactly one chunk", chunkSize, 1},
		{"one over boundary", chunkSize + 1, 2},
		{"exact multiple", 10 * chunkSize, 10},
		{"multiple plus remainder", 10*chunkSize + 123, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Count(tt.size, chunkSize)
			if err != nil {
				t.Fatalf("Count(%d, %d): %v", tt.size, chunkSize, err)
			}
			if got != tt.want {
				t.Errorf("Count(%d, %d) = %d, want %d", tt.size, chunkSize, got, tt.want)
			}
		})
	}
}

func TestCount_CeilEquivalence(t *testing.T) {
	// Count must agree with ceil(size/chunkSize) across a spread of sizes.
	const chunkSize = 4096

	for size := int64(0); size <= 3*chunkSize; size += 511 {
		want := int((size + chunkSize - 1) / chunkSize)
		got, err := Count(size, chunkSize)
		if err != nil {
			t.Fatalf("Count(%d, %d): %v", size, chunkSize, err)
		}
		if got != want {
			t.Errorf("Count(%d, %d) = %d, want %d", size, chunkSize, got, want)
		}
	}
}

func TestCount_NegativeSize(t *testing.T) {
	_, err := Count(-1, 1<<20)
	if !errors.Is(err, ErrNegativeSize) {
		t.Errorf("Count(-1) error = %v, want ErrNegativeSize", err)
	}
}

func TestCount_BadChunkSize(t *testing.T) {
	for _, chunkSize := range []int64{0, -5} {
		_, err := Count(100, chunkSize)
		if !errors.Is(err, ErrChunkSize) {
			t.Errorf("Count(100, %d) error = %v, want ErrChunkSize", chunkSize, err)
		}
	}
}
