// Package inventory streams archive inventory rows for one partition from
// the Athena inventory table.
package inventory

import "fmt"

// Row is a single archived object as listed by the inventory table.
type Row struct {
	// RowNum orders rows within a partition. Monotonic, unique per
	// partition.
	RowNum int64

	// SizeBytes is the archive size in bytes.
	SizeBytes int64

	// ArchiveID is the opaque Glacier archive identifier.
	ArchiveID string

	// SHA256TreeHash is carried through for later integrity checks. Not
	// interpreted by this stage.
	SHA256TreeHash string

	// Description is the free-text archive description. May embed a name
	// hint.
	Description string

	// CreationDate is the archive creation timestamp, ISO-8601, kept as a
	// string.
	CreationDate string
}

// RowError reports a malformed inventory row. A RowError is fatal to the
// whole partition: the cursor stays trustworthy only if no row is silently
// skipped.
type RowError struct {
	Line  int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("inventory row at line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Iterator yields inventory rows in ascending RowNum order.
type Iterator interface {
	// Next advances to the next row. It returns false when the stream is
	// exhausted or an error occurred; check Err afterwards.
	Next() bool

	// Row returns the current row. Valid only after Next returned true.
	Row() Row

	// Err returns the first error encountered, or nil on clean exhaustion.
	Err() error

	// Close releases the underlying result stream.
	Close() error
}
