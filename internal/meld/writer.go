package meld

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/keyfile"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/naming"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/status"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// writer accumulates key file records and the matching merge inputs. A
// record and its input are always appended together.
type writer struct {
	pdf     PDF
	cfg     types.MeldConfig
	parser  *naming.Parser
	out     *status.Printer
	staging string

	records []types.IndexRecord
	inputs  []string
	pages   int
}

// add appends every PDF of sub, in order.
func (w *writer) add(sub types.Submission) error {
	label := ""
	if w.cfg.Labels {
		if student, ok := w.parser.Parse(sub.Key); ok {
			label = naming.Label(student, w.cfg.ShowNames)
		} else {
			w.out.Warnf("bad folder name for %s naming: %s", w.parser.Scheme(), sub.Key)
		}
	}

	for _, name := range sub.Files {
		path := filepath.Join(sub.Dir, name)
		w.checkSize(path, name)

		count, err := w.pdf.PageCount(path)
		if err != nil {
			return &SourceFileUnreadableError{Key: sub.Key, File: name, Err: err}
		}
		if count <= 0 {
			return &SourceFileUnreadableError{Key: sub.Key, File: name, Err: fmt.Errorf("no pages")}
		}

		w.checkAnnotations(path, name)

		input := path
		if label != "" {
			input = filepath.Join(w.staging, "label-"+strconv.Itoa(len(w.inputs))+".pdf")
			if err := w.pdf.StampFirstPageFile(path, input, label, pdfdoc.LabelStyle); err != nil {
				return fmt.Errorf("labelling %s/%s: %w", sub.Key, name, err)
			}
		}

		w.records = append(w.records, types.IndexRecord{
			SubmissionKey:  sub.Key,
			SourceFileName: name,
			PageCount:      count,
		})
		w.inputs = append(w.inputs, input)
		w.pages += count
		w.out.Debugf("  %s: %d pages", name, count)
	}
	return nil
}

func (w *writer) checkSize(path, name string) {
	limit := w.cfg.SizeWarningBytes
	if limit <= 0 {
		limit = types.DefaultSizeWarningBytes
	}
	info, err := os.Stat(path)
	if err == nil && info.Size() > limit {
		w.out.Warnf("%s is %.1f MB", name, float64(info.Size())/(1<<20))
	}
}

// checkAnnotations warns when a source file's first page already carries
// more annotations than the configured limit.
func (w *writer) checkAnnotations(path, name string) {
	limit := w.cfg.AnnotationWarning
	if limit <= 0 {
		limit = types.DefaultAnnotationWarning
	}
	n, err := w.pdf.FirstPageAnnotations(path)
	if err != nil {
		w.out.Debugf("  %s: annotations not checked: %v", name, err)
		return
	}
	if n > limit {
		w.out.Warnf("%s has %d annotations on its first page", name, n)
	}
}

// finish merges the inputs into meldedPath, scales its pages when
// configured, checks that the melded page count matches the records, and
// writes the key file.
func (w *writer) finish(meldedPath, keyPath string) error {
	if err := w.pdf.Merge(w.inputs, meldedPath); err != nil {
		return err
	}
	if w.cfg.ScaleWidth > 0 {
		if err := w.pdf.ScaleToWidth(meldedPath, w.cfg.ScaleWidth); err != nil {
			return err
		}
		w.out.Debugf("scaled pages to %g points wide", w.cfg.ScaleWidth)
	}

	melded, err := w.pdf.PageCount(meldedPath)
	if err != nil {
		return fmt.Errorf("checking melded document: %w", err)
	}
	if recorded := keyfile.TotalPages(w.records); melded != recorded {
		return &ConservationError{Recorded: recorded, Melded: melded}
	}

	return keyfile.WriteFile(keyPath, w.records)
}
