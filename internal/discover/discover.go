// Package discover lists the submission folders under a meld root. Each
// immediate subfolder is one submission; its PDFs are melded in name order.
// The order returned here is the order pages are appended and key file rows
// are written, so it must not depend on directory listing order.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// Options controls which folders count as plausible submissions.
type Options struct {
	// MaxFiles excludes folders with more files than this. Zero means
	// types.DefaultMaxFiles.
	MaxFiles int
}

// DuplicateKeyError reports two submission folders whose names differ only
// by case. Both would unmeld into the same folder on case-insensitive file
// systems.
type DuplicateKeyError struct {
	First, Second string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("submission folders %q and %q differ only by case", e.First, e.Second)
}

// Result holds the discovered submissions and counts of excluded folders.
type Result struct {
	Submissions []types.Submission
	Excluded    int
	Empty       int

	// Warnings describes each excluded or skipped folder, in folder order.
	Warnings []string
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Submissions lists root's subfolders, sorted case-insensitively, and the
// PDFs inside each. Folders with nested folders or an implausible number of
// files are excluded, and folders without PDFs are skipped; each produces a
// warning in the result.
func Submissions(root string, opts Options) (Result, error) {
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = types.DefaultMaxFiles
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return Result{}, fmt.Errorf("reading submissions folder %s: %w", root, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sortFolders(dirs)

	for i := 1; i < len(dirs); i++ {
		if strings.EqualFold(dirs[i-1], dirs[i]) {
			return Result{}, &DuplicateKeyError{First: dirs[i-1], Second: dirs[i]}
		}
	}

	var result Result
	for _, name := range dirs {
		dir := filepath.Join(root, name)
		files, nested, err := listFiles(dir)
		if err != nil {
			return Result{}, err
		}

		if nested {
			result.warnf("%s contains subfolders, excluded", name)
			result.Excluded++
			continue
		}
		if len(files) < 1 || len(files) > maxFiles {
			result.warnf("%s contains %d files, excluded", name, len(files))
			result.Excluded++
			continue
		}

		pdfs := filterPDFs(files)
		if len(pdfs) == 0 {
			result.warnf("no PDFs in %s, skipped", name)
			result.Empty++
			continue
		}

		result.Submissions = append(result.Submissions, types.Submission{
			Key:   name,
			Dir:   dir,
			Files: pdfs,
		})
	}

	return result, nil
}

// listFiles returns the regular file names in dir and whether dir contains
// any subfolders.
func listFiles(dir string) ([]string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, fmt.Errorf("reading submission folder %s: %w", dir, err)
	}
	var files []string
	nested := false
	for _, e := range entries {
		if e.IsDir() {
			nested = true
			continue
		}
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nested, nil
}

// filterPDFs keeps names with a .pdf extension in any case, sorted.
func filterPDFs(files []string) []string {
	var pdfs []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".pdf") {
			pdfs = append(pdfs, f)
		}
	}
	sort.Strings(pdfs)
	return pdfs
}

// sortFolders orders names case-insensitively, falling back to byte order
// so the result never depends on the input order.
func sortFolders(names []string) {
	sort.Slice(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})
}
