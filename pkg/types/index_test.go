package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRange(t *testing.T) {
	r := PageRange{Start: 2, Count: 3}
	assert.Equal(t, 5, r.End())
	assert.Equal(t, []int{3, 4, 5}, r.PageNumbers())
	assert.Equal(t, "[2,5)", r.String())
}

func TestIndexRecordString(t *testing.T) {
	r := IndexRecord{SubmissionKey: "B", SourceFileName: "file1.pdf", PageCount: 3}
	assert.Equal(t, "B/file1.pdf (3 pages)", r.String())
}
