// Package keyfile reads and writes the key file: the ordered CSV index that
// links page ranges of a melded document back to the source PDFs. Row order
// is significant. The file stores page counts only; offsets are rebuilt by
// summing counts in order.
package keyfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

const numFields = 3

// MalformedRecordError describes a key file row that cannot be turned into
// an IndexRecord. Such rows contribute no pages.
type MalformedRecordError struct {
	Line   int
	Fields []string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("row %d: %s: %q", e.Line, e.Reason, e.Fields)
}

// Row is one parsed key file row. Exactly one of Record and Err is meaningful:
// when Err is non-nil the row was malformed and Record is the zero value.
type Row struct {
	Line   int
	Record types.IndexRecord
	Err    *MalformedRecordError
}

// Write writes records as CSV rows in the given order.
func Write(w io.Writer, records []types.IndexRecord) error {
	cw := csv.NewWriter(w)
	for _, r := range records {
		if err := cw.Write([]string{r.SubmissionKey, r.SourceFileName, strconv.Itoa(r.PageCount)}); err != nil {
			return fmt.Errorf("writing row for %s: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes records to path through a temporary file in the same
// directory, so an interrupted write never leaves a truncated key file.
func WriteFile(path string, records []types.IndexRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".keyfile-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := Write(tmp, records)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Read parses every row of a key file. Malformed rows are returned with Err
// set rather than failing the read; only I/O and CSV syntax problems return
// an error.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var rows []Row
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("reading key file: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, parseRow(line, fields))
	}
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening key file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func parseRow(line int, fields []string) Row {
	malformed := func(reason string) Row {
		return Row{Line: line, Err: &MalformedRecordError{Line: line, Fields: fields, Reason: reason}}
	}

	if len(fields) != numFields {
		return malformed(fmt.Sprintf("expected %d fields, got %d", numFields, len(fields)))
	}
	key, name, countStr := fields[0], fields[1], strings.TrimSpace(fields[2])

	if key == "" || name == "" {
		return malformed("empty submission key or file name")
	}
	if !safeComponent(key) {
		return malformed("submission key is not a plain folder name")
	}
	if !safeComponent(name) {
		return malformed("source file name is not a plain file name")
	}
	count, err := strconv.Atoi(countStr)
	if err != nil {
		return malformed("page count is not an integer")
	}
	if count <= 0 {
		return malformed("page count is not positive")
	}

	return Row{
		Line: line,
		Record: types.IndexRecord{
			SubmissionKey:  key,
			SourceFileName: name,
			PageCount:      count,
		},
	}
}

// safeComponent reports whether s can be joined under an output directory
// without escaping it.
func safeComponent(s string) bool {
	if s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}

// Records returns the well-formed records of rows, in order.
func Records(rows []Row) []types.IndexRecord {
	var out []types.IndexRecord
	for _, row := range rows {
		if row.Err == nil {
			out = append(out, row.Record)
		}
	}
	return out
}

// Ranges returns each record's page range. Record i starts where record i-1
// ends; the first starts at page 0.
func Ranges(records []types.IndexRecord) []types.PageRange {
	ranges := make([]types.PageRange, len(records))
	offset := 0
	for i, r := range records {
		ranges[i] = types.PageRange{Start: offset, Count: r.PageCount}
		offset += r.PageCount
	}
	return ranges
}

// TotalPages returns the number of pages the records account for.
func TotalPages(records []types.IndexRecord) int {
	total := 0
	for _, r := range records {
		total += r.PageCount
	}
	return total
}
