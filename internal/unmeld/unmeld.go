// Package unmeld cuts a marked melded document back into one PDF per source
// file. The key file is read in order and each well-formed row takes the
// next PageCount pages off a running cursor, so rows must appear exactly as
// meld wrote them.
package unmeld

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/collision"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/keyfile"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/status"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// Document is an opened melded document.
type Document interface {
	PageCount() int
	WritePages(w io.Writer, r types.PageRange) error
}

// PDF opens melded documents and stamps output files.
type PDF interface {
	Open(path string) (Document, error)
	StampFirstPage(rs io.ReadSeeker, w io.Writer, text string, style pdfdoc.Style) error
}

// Options carries the collaborators of a run.
type Options struct {
	// Status receives progress and warnings. Nil discards them.
	Status *status.Printer

	// Confirm answers prompts under the prompt collision policy.
	Confirm collision.Confirmer
}

// OutputStatus tells what happened to one record's output file.
type OutputStatus string

const (
	// Written means the pages were sliced and saved.
	Written OutputStatus = "written"

	// Kept means an existing file was left in place by the collision policy.
	Kept OutputStatus = "kept"
)

// Output is the outcome for one well-formed key file row.
type Output struct {
	Line   int               `json:"line" yaml:"line"`
	Record types.IndexRecord `json:"record" yaml:"record"`
	Range  types.PageRange   `json:"range" yaml:"range"`
	Path   string            `json:"path" yaml:"path"`
	Status OutputStatus      `json:"status" yaml:"status"`
}

// Summary reports an unmeld run.
type Summary struct {
	MeldedPath  string
	KeyFilePath string
	OutputDir   string
	ZipPath     string

	Outputs   []Output
	Created   int
	Kept      int
	Malformed int

	// Pages is the melded document's page count; Unclaimed is how many
	// trailing pages no row accounted for.
	Pages     int
	Unclaimed int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Paths returns the key file and output directory cfg resolves to.
func Paths(cfg types.UnmeldConfig) (keyPath, outDir string) {
	dir := filepath.Dir(cfg.MeldedPath)
	keyPath = cfg.KeyFilePath
	if keyPath == "" {
		keyPath = filepath.Join(dir, types.DefaultKeyFileName)
	}
	outDir = cfg.OutputDir
	if outDir == "" {
		outDir = filepath.Join(dir, types.DefaultUnmeldedDirName)
	}
	return keyPath, outDir
}

// Unmeld slices cfg.MeldedPath according to its key file.
//
// Malformed rows are reported and skipped without moving the cursor. A row
// that overruns the document stops the run with *IndexExhaustedError; the
// files already written are kept and the partial Summary is returned along
// with the error.
func Unmeld(ctx context.Context, pdf PDF, cfg types.UnmeldConfig, opts Options) (*Summary, error) {
	out := opts.Status
	if out == nil {
		out = status.Discard()
	}

	keyPath, outDir := Paths(cfg)
	summary := &Summary{
		MeldedPath:  cfg.MeldedPath,
		KeyFilePath: keyPath,
		OutputDir:   outDir,
		StartedAt:   time.Now(),
	}

	rows, err := keyfile.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	doc, err := pdf.Open(cfg.MeldedPath)
	if err != nil {
		return nil, fmt.Errorf("opening melded document: %w", err)
	}
	summary.Pages = doc.PageCount()

	abs, _ := filepath.Abs(cfg.MeldedPath)
	out.Infof("Starting unmeld of: %s", abs)

	s := &slicer{
		doc:      doc,
		pdf:      pdf,
		outDir:   outDir,
		initials: strings.TrimSpace(cfg.Initials),
		maxChars: cfg.MaxNameChars,
		used:     map[string]bool{},
	}
	cursor := NewCursor(summary.Pages)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if row.Err != nil {
			summary.Malformed++
			out.Warnf("skipping key file %v", row.Err)
			continue
		}

		rng, err := cursor.Next(row)
		if err != nil {
			summary.FinishedAt = time.Now()
			return summary, err
		}

		path := s.outputPath(row.Record)
		o := Output{Line: row.Line, Record: row.Record, Range: rng, Path: path}

		decision, err := collision.Resolve(path, cfg.Collision, opts.Confirm)
		if err != nil {
			summary.FinishedAt = time.Now()
			return summary, err
		}
		if decision == collision.Skip {
			o.Status = Kept
			summary.Kept++
			summary.Outputs = append(summary.Outputs, o)
			out.Warnf("kept existing %s", path)
			continue
		}

		if err := s.write(rng, path); err != nil {
			summary.FinishedAt = time.Now()
			return summary, fmt.Errorf("row %d (%s): %w", row.Line, row.Record, err)
		}
		o.Status = Written
		summary.Created++
		summary.Outputs = append(summary.Outputs, o)
		out.Infof("[%d/%d] %s pages %s -> %s", i+1, len(rows), row.Record.SubmissionKey, rng, relative(outDir, path))
	}

	summary.Unclaimed = cursor.Remaining()
	if summary.Unclaimed > 0 {
		out.Warnf("%d pages at the end of %s are not claimed by the key file", summary.Unclaimed, filepath.Base(cfg.MeldedPath))
	}

	switch {
	case cfg.Zip && summary.Created+summary.Kept == 0:
		out.Warnf("no files unmelded, %s not archived", outDir)
	case cfg.Zip:
		zipPath := filepath.Clean(outDir) + ".zip"
		if err := zipDir(outDir, zipPath); err != nil {
			summary.FinishedAt = time.Now()
			return summary, err
		}
		summary.ZipPath = zipPath
		out.Infof("archived %s", zipPath)
	}

	summary.FinishedAt = time.Now()
	out.Donef("%d files written, %d kept, %d rows skipped, into %s", summary.Created, summary.Kept, summary.Malformed, outDir)
	return summary, nil
}

func relative(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

// slicer writes output files for one run and remembers which paths the run
// has produced.
type slicer struct {
	doc      Document
	pdf      PDF
	outDir   string
	initials string
	maxChars int

	used map[string]bool
}

// outputPath returns <outDir>/<key>/<stem>.pdf, with the stem truncated.
// When two records of the run truncate to the same path, later ones get a
// -2, -3, ... suffix.
func (s *slicer) outputPath(r types.IndexRecord) string {
	base := filepath.Join(s.outDir, r.SubmissionKey, truncate(stem(r.SourceFileName), s.maxChars))
	path := base + ".pdf"
	for n := 2; s.used[strings.ToLower(path)]; n++ {
		path = fmt.Sprintf("%s-%d.pdf", base, n)
	}
	s.used[strings.ToLower(path)] = true
	return path
}

func stem(name string) string {
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".pdf") {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		limit = types.DefaultMaxNameChars
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// write saves the pages in r to path through a temporary file, stamping
// the marker's initials on the first page when set.
func (s *slicer) write(r types.PageRange, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".unmeld-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := s.writePages(tmp, r)
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

func (s *slicer) writePages(w io.Writer, r types.PageRange) error {
	if s.initials == "" {
		return s.doc.WritePages(w, r)
	}
	var buf bytes.Buffer
	if err := s.doc.WritePages(&buf, r); err != nil {
		return err
	}
	return s.pdf.StampFirstPage(bytes.NewReader(buf.Bytes()), w, s.initials, pdfdoc.InitialsStyle)
}

// library adapts *pdfdoc.Library to PDF.
type library struct {
	*pdfdoc.Library
}

// Library returns a PDF backed by pdfcpu.
func Library(l *pdfdoc.Library) PDF {
	return library{l}
}

func (l library) Open(path string) (Document, error) {
	doc, err := l.Library.Open(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
