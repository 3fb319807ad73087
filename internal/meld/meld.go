// Package meld concatenates per-student submissions into one melded PDF and
// writes the key file that lets unmeld cut it apart again. Both walk the
// submissions in the same order, and every key file row records the page
// count that was actually appended.
package meld

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/collision"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/discover"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/naming"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/status"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// PDF is the page-level functionality meld needs. *pdfdoc.Library
// implements it.
type PDF interface {
	PageCount(path string) (int, error)
	Merge(inFiles []string, outFile string) error
	StampFirstPageFile(inFile, outFile, text string, style pdfdoc.Style) error
	ScaleToWidth(path string, width float64) error
	FirstPageAnnotations(path string) (int, error)
}

// ErrNoSubmissions is returned when the root holds no usable submission folders.
var ErrNoSubmissions = errors.New("no valid submission folders found")

// SourceFileUnreadableError reports a source PDF whose pages could not be
// counted. The run is abandoned: a guessed count would shift every later row.
type SourceFileUnreadableError struct {
	Key  string
	File string
	Err  error
}

func (e *SourceFileUnreadableError) Error() string {
	return fmt.Sprintf("source file %s/%s unreadable: %v", e.Key, e.File, e.Err)
}

func (e *SourceFileUnreadableError) Unwrap() error { return e.Err }

// ConservationError reports a melded document whose page count differs from
// the sum of the key file's counts.
type ConservationError struct {
	Recorded int
	Melded   int
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("melded document has %d pages but key file records %d", e.Melded, e.Recorded)
}

// Options carries the collaborators of a run.
type Options struct {
	// Status receives progress and warnings. Nil discards them.
	Status *status.Printer

	// Confirm answers prompts under the prompt collision policy.
	Confirm collision.Confirmer
}

// Result summarizes a completed meld.
type Result struct {
	Records     []types.IndexRecord
	Submissions int
	Excluded    int
	Empty       int
	Pages       int
	MeldedPath  string
	KeyFilePath string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Files returns the number of source PDFs melded.
func (r *Result) Files() int {
	return len(r.Records)
}

// OutputPaths returns where cfg places the melded document and key file.
func OutputPaths(cfg types.MeldConfig) (melded, key string) {
	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(filepath.Clean(cfg.RootDir))
	}
	meldedName := cfg.MeldedFileName
	if meldedName == "" {
		meldedName = types.DefaultMeldedFileName
	}
	keyName := cfg.KeyFileName
	if keyName == "" {
		keyName = types.DefaultKeyFileName
	}
	return filepath.Join(outDir, meldedName), filepath.Join(outDir, keyName)
}

// Meld melds the submissions under cfg.RootDir. On any error nothing is
// committed: an existing melded document and key file are left as they were.
func Meld(ctx context.Context, pdf PDF, cfg types.MeldConfig, opts Options) (*Result, error) {
	out := opts.Status
	if out == nil {
		out = status.Discard()
	}
	started := time.Now()

	info, err := os.Stat(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("submissions folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("submissions folder %s is not a directory", cfg.RootDir)
	}

	parser, err := naming.New(cfg.Naming)
	if err != nil {
		return nil, err
	}

	meldedPath, keyPath := OutputPaths(cfg)
	decision, err := collision.Resolve(meldedPath, cfg.Collision, opts.Confirm)
	if err != nil {
		return nil, err
	}
	if decision == collision.Skip {
		return nil, &collision.ExistsError{Path: meldedPath}
	}

	found, err := discover.Submissions(cfg.RootDir, discover.Options{MaxFiles: cfg.MaxFiles})
	if err != nil {
		return nil, err
	}
	for _, w := range found.Warnings {
		out.Warnf("%s", w)
	}
	if len(found.Submissions) == 0 {
		return nil, ErrNoSubmissions
	}

	abs, _ := filepath.Abs(cfg.RootDir)
	out.Infof("Starting meld from: %s", abs)

	outDir := filepath.Dir(meldedPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	staging, err := os.MkdirTemp(outDir, ".meld-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	w := &writer{
		pdf:     pdf,
		cfg:     cfg,
		parser:  parser,
		out:     out,
		staging: staging,
	}
	for i, sub := range found.Submissions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.add(sub); err != nil {
			return nil, err
		}
		out.Infof("[%d/%d] melded %s", i+1, len(found.Submissions), sub.Key)
	}

	stagedMelded := filepath.Join(staging, filepath.Base(meldedPath))
	stagedKey := filepath.Join(staging, filepath.Base(keyPath))
	if err := w.finish(stagedMelded, stagedKey); err != nil {
		return nil, err
	}
	if err := commit(stagedMelded, meldedPath, stagedKey, keyPath); err != nil {
		return nil, err
	}

	result := &Result{
		Records:     w.records,
		Submissions: len(found.Submissions),
		Excluded:    found.Excluded,
		Empty:       found.Empty,
		Pages:       w.pages,
		MeldedPath:  meldedPath,
		KeyFilePath: keyPath,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}
	out.Donef("%d folders, %d files, %d pages melded into %s", result.Submissions, result.Files(), result.Pages, meldedPath)
	return result, nil
}

// commit moves the staged pair into place. Any existing key file is removed
// first and the new key file is renamed last, so a failure part way never
// leaves a key file describing a different melded document.
func commit(stagedMelded, meldedPath, stagedKey, keyPath string) error {
	if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old key file: %w", err)
	}
	if err := os.Rename(stagedMelded, meldedPath); err != nil {
		return fmt.Errorf("writing melded document: %w", err)
	}
	if err := os.Rename(stagedKey, keyPath); err != nil {
		os.Remove(meldedPath)
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}
