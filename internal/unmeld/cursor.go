package unmeld

import (
	"fmt"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/keyfile"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// IndexExhaustedError reports a key file row asking for more pages than the
// melded document has left. Offsets are cumulative, so every later row would
// be misaligned too.
type IndexExhaustedError struct {
	Line      int
	Key       string
	File      string
	Start     int
	Count     int
	Available int
}

func (e *IndexExhaustedError) Error() string {
	return fmt.Sprintf("row %d (%s/%s) needs pages %s but the melded document has %d: key file and document are out of step",
		e.Line, e.Key, e.File, types.PageRange{Start: e.Start, Count: e.Count}, e.Available)
}

// Cursor hands out consecutive page ranges of a document. Its only state is
// the number of pages consumed so far.
type Cursor struct {
	consumed int
	total    int
}

// NewCursor returns a cursor at page 0 of a document with total pages.
func NewCursor(total int) *Cursor {
	return &Cursor{total: total}
}

// Next returns the range for row and advances past it. A row that would run
// past the end of the document returns *IndexExhaustedError and leaves the
// cursor where it was.
func (c *Cursor) Next(row keyfile.Row) (types.PageRange, error) {
	r := types.PageRange{Start: c.consumed, Count: row.Record.PageCount}
	if r.End() > c.total {
		return types.PageRange{}, &IndexExhaustedError{
			Line:      row.Line,
			Key:       row.Record.SubmissionKey,
			File:      row.Record.SourceFileName,
			Start:     r.Start,
			Count:     r.Count,
			Available: c.total,
		}
	}
	c.consumed = r.End()
	return r, nil
}

// Consumed returns the number of pages handed out.
func (c *Cursor) Consumed() int { return c.consumed }

// Remaining returns the number of pages not yet claimed by any row.
func (c *Cursor) Remaining() int { return c.total - c.consumed }
