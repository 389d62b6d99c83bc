package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names of the inventory query result, as written by the query
// service.
const (
	colRowNum       = "row_num"
	colSize         = "size"
	colArchiveID    = "archiveid"
	colTreeHash     = "sha256treehash"
	colDescription  = "archivedescription"
	colCreationDate = "creationdate"
)

var requiredColumns = []string{
	colRowNum, colSize, colArchiveID, colTreeHash, colDescription, colCreationDate,
}

// rowIterator reads inventory rows from a CSV result stream. The stream is
// already sorted ascending by row_num, so duplicate rows are adjacent and a
// single-row lookbehind is enough to drop them.
type rowIterator struct {
	csv     *csv.Reader
	closer  io.Closer
	cols    map[string]int
	cur     Row
	prev    Row
	hasPrev bool
	line    int
	err     error
	done    bool
}

// NewRowIterator creates an Iterator over a CSV result stream. The first
// record must be the header row. Ownership of rc passes to the iterator;
// Close releases it.
func NewRowIterator(rc io.ReadCloser) (Iterator, error) {
	csvr := csv.NewReader(rc)
	csvr.ReuseRecord = true
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true

	header, err := csvr.Read()
	if err != nil {
		rc.Close()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("inventory result is empty, expected header row")
		}
		return nil, fmt.Errorf("read inventory header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			rc.Close()
			return nil, fmt.Errorf("inventory header missing column %q", name)
		}
	}

	return &rowIterator{
		csv:    csvr,
		closer: rc,
		cols:   cols,
		line:   1,
	}, nil
}

func (it *rowIterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}

	for {
		fields, err := it.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				it.done = true
				return false
			}
			it.err = fmt.Errorf("read inventory row: %w", err)
			return false
		}
		it.line++

		row, err := it.parse(fields)
		if err != nil {
			it.err = err
			return false
		}

		if it.hasPrev {
			if row == it.prev {
				continue
			}
			if row.RowNum < it.prev.RowNum {
				it.err = fmt.Errorf("inventory rows out of order: row_num %d after %d",
					row.RowNum, it.prev.RowNum)
				return false
			}
		}

		it.cur = row
		it.prev = row
		it.hasPrev = true
		return true
	}
}

// parse converts one CSV record into a Row, coercing the numeric fields.
func (it *rowIterator) parse(fields []string) (Row, error) {
	get := func(name string) (string, error) {
		idx := it.cols[name]
		if idx >= len(fields) {
			return "", &RowError{Line: it.line, Field: name, Err: errors.New("missing")}
		}
		return fields[idx], nil
	}

	rowNumStr, err := get(colRowNum)
	if err != nil {
		return Row{}, err
	}
	rowNum, err := strconv.ParseInt(strings.TrimSpace(rowNumStr), 10, 64)
	if err != nil {
		return Row{}, &RowError{Line: it.line, Field: colRowNum, Err: err}
	}

	sizeStr, err := get(colSize)
	if err != nil {
		return Row{}, err
	}
	size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 10, 64)
	if err != nil {
		return Row{}, &RowError{Line: it.line, Field: colSize, Err: err}
	}
	if size < 0 {
		return Row{}, &RowError{Line: it.line, Field: colSize, Err: fmt.Errorf("negative size %d", size)}
	}

	archiveID, err := get(colArchiveID)
	if err != nil {
		return Row{}, err
	}
	if archiveID == "" {
		return Row{}, &RowError{Line: it.line, Field: colArchiveID, Err: errors.New("empty")}
	}

	treeHash, err := get(colTreeHash)
	if err != nil {
		return Row{}, err
	}
	description, err := get(colDescription)
	if err != nil {
		return Row{}, err
	}
	creationDate, err := get(colCreationDate)
	if err != nil {
		return Row{}, err
	}

	return Row{
		RowNum:         rowNum,
		SizeBytes:      size,
		ArchiveID:      archiveID,
		SHA256TreeHash: treeHash,
		Description:    description,
		CreationDate:   creationDate,
	}, nil
}

func (it *rowIterator) Row() Row { return it.cur }

func (it *rowIterator) Err() error { return it.err }

func (it *rowIterator) Close() error {
	if it.closer == nil {
		return nil
	}
	err := it.closer.Close()
	it.closer = nil
	if err != nil {
		return fmt.Errorf("close inventory result: %w", err)
	}
	return nil
}
