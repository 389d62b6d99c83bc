package status

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store. It backs dry runs and tests. Safe for
// concurrent use.
type MemStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// Put stores the record, overwriting any existing one for the archive.
func (s *MemStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ArchiveID] = rec
	return nil
}

// MaxRowNum scans the partition's records for the highest row number.
func (s *MemStore) MaxRowNum(_ context.Context, partitionID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int64
	for _, rec := range s.records {
		if rec.PartitionID == partitionID && rec.RowNum > max {
			max = rec.RowNum
		}
	}
	return max, nil
}

// FileNameExists reports whether any stored record holds the filename.
func (s *MemStore) FileNameExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.FileName == name {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of stored records.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the record for an archive, if present.
func (s *MemStore) Get(archiveID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[archiveID]
	return rec, ok
}

// Records returns a snapshot of all stored records.
func (s *MemStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}
