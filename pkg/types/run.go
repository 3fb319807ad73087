package types

import "time"

// RunKind distinguishes ledger entries.
type RunKind string

const (
	RunMeld   RunKind = "meld"
	RunUnmeld RunKind = "unmeld"
)

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunOK     RunStatus = "ok"
	RunFailed RunStatus = "failed"
)

// Run is one meld or unmeld recorded in the history ledger.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Kind       RunKind   `json:"kind" yaml:"kind"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	// Source is the submissions folder for a meld and the melded document
	// for an unmeld.
	Source     string `json:"source" yaml:"source"`
	MeldedPath string `json:"melded_path" yaml:"melded_path"`
	KeyPath    string `json:"key_path" yaml:"key_path"`

	Status  RunStatus `json:"status" yaml:"status"`
	Pages   int       `json:"pages" yaml:"pages"`
	Message string    `json:"message,omitempty" yaml:"message,omitempty"`

	// Records is filled in by a single-run lookup only.
	Records []RunRecord `json:"records,omitempty" yaml:"records,omitempty"`
}

// RunRecord is one key file row as a run handled it.
type RunRecord struct {
	Seq           int    `json:"seq" yaml:"seq"`
	SubmissionKey string `json:"submission_key" yaml:"submission_key"`
	SourceFile    string `json:"source_file" yaml:"source_file"`
	PageCount     int    `json:"page_count" yaml:"page_count"`
	StartPage     int    `json:"start_page" yaml:"start_page"`
	OutputPath    string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
}
