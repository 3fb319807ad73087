// Package types defines the data shared by meld, unmeld, the run history,
// and the CLI.
package types

import "fmt"

// IndexRecord is one row of the key file: a source PDF and the number of
// pages it contributed to the melded document. Records carry no offsets;
// a record's page range is the running sum of the counts before it.
type IndexRecord struct {
	// SubmissionKey is the submission folder name, reused as the output
	// folder name on unmeld.
	SubmissionKey string `json:"submission_key" yaml:"submission_key"`

	// SourceFileName is the PDF's name inside the submission folder.
	SourceFileName string `json:"source_file_name" yaml:"source_file_name"`

	// PageCount is the true page count of the source PDF at meld time.
	PageCount int `json:"page_count" yaml:"page_count"`
}

func (r IndexRecord) String() string {
	return fmt.Sprintf("%s/%s (%d pages)", r.SubmissionKey, r.SourceFileName, r.PageCount)
}

// PageRange is a half-open range [Start, Start+Count) of 0-based page
// indexes into the melded document.
type PageRange struct {
	Start int `json:"start" yaml:"start"`
	Count int `json:"count" yaml:"count"`
}

// End returns the exclusive end index.
func (r PageRange) End() int {
	return r.Start + r.Count
}

// PageNumbers returns the 1-based page numbers covered by the range, the
// numbering PDF tools use.
func (r PageRange) PageNumbers() []int {
	nrs := make([]int, r.Count)
	for i := range nrs {
		nrs[i] = r.Start + i + 1
	}
	return nrs
}

func (r PageRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End())
}

// Submission is one subfolder of the meld root.
type Submission struct {
	// Key is the folder name.
	Key string `json:"key" yaml:"key"`

	// Dir is the folder's path.
	Dir string `json:"dir" yaml:"dir"`

	// Files lists the PDF file names in the folder, sorted by name.
	Files []string `json:"files" yaml:"files"`
}

// Student is the identity parsed from a submission folder name.
type Student struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}
