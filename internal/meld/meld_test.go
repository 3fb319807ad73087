package meld

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/collision"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/keyfile"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/status"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// --- fake PDF collaborator ---

// fakePDF treats files holding "pages:N" as N-page documents. An optional
// "annots:N" line sets the first page's annotation count.
type fakePDF struct {
	mergeInputs []string
	stamps      map[string]string
	extraPages  int
	scaledTo    float64
}

func writeFake(t *testing.T, path string, pages int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("pages:%d\n", pages)), 0o644))
}

func (f *fakePDF) PageCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(string(data), "\n")
	n, ok := strings.CutPrefix(first, "pages:")
	if !ok {
		return 0, errors.New("not a PDF")
	}
	return strconv.Atoi(n)
}

func (f *fakePDF) Merge(inFiles []string, outFile string) error {
	f.mergeInputs = inFiles
	total := f.extraPages
	for _, in := range inFiles {
		n, err := f.PageCount(in)
		if err != nil {
			return err
		}
		total += n
	}
	return os.WriteFile(outFile, []byte(fmt.Sprintf("pages:%d\n", total)), 0o644)
}

func (f *fakePDF) StampFirstPageFile(inFile, outFile, text string, _ pdfdoc.Style) error {
	if f.stamps == nil {
		f.stamps = map[string]string{}
	}
	f.stamps[inFile] = text
	data, err := os.ReadFile(inFile)
	if err != nil {
		return err
	}
	return os.WriteFile(outFile, data, 0o644)
}

func (f *fakePDF) ScaleToWidth(path string, width float64) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	f.scaledTo = width
	return nil
}

func (f *fakePDF) FirstPageAnnotations(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if n, ok := strings.CutPrefix(line, "annots:"); ok {
			return strconv.Atoi(n)
		}
	}
	return 0, nil
}

// --- helpers ---

// exampleTree builds the three-folder example: A has one 2-page PDF, B has
// 3- and 1-page PDFs, C has no PDFs.
func exampleTree(t *testing.T) (root string) {
	t.Helper()
	root = filepath.Join(t.TempDir(), "submissions")
	writeFake(t, filepath.Join(root, "A", "fileA.pdf"), 2)
	writeFake(t, filepath.Join(root, "B", "file1.pdf"), 3)
	writeFake(t, filepath.Join(root, "B", "file2.pdf"), 1)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "C"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "C", "notes.txt"), []byte("n"), 0o644))
	return root
}

func exampleRecords() []types.IndexRecord {
	return []types.IndexRecord{
		{SubmissionKey: "A", SourceFileName: "fileA.pdf", PageCount: 2},
		{SubmissionKey: "B", SourceFileName: "file1.pdf", PageCount: 3},
		{SubmissionKey: "B", SourceFileName: "file2.pdf", PageCount: 1},
	}
}

func readKeyFile(t *testing.T, path string) []types.IndexRecord {
	t.Helper()
	rows, err := keyfile.ReadFile(path)
	require.NoError(t, err)
	return keyfile.Records(rows)
}

// --- tests ---

func TestMeldExampleScenario(t *testing.T) {
	root := exampleTree(t)
	var buf bytes.Buffer
	pdf := &fakePDF{}

	result, err := Meld(context.Background(), pdf, types.MeldConfig{RootDir: root}, Options{Status: status.New(&buf, false)})
	require.NoError(t, err)

	parent := filepath.Dir(root)
	assert.Equal(t, filepath.Join(parent, types.DefaultMeldedFileName), result.MeldedPath)
	assert.Equal(t, filepath.Join(parent, types.DefaultKeyFileName), result.KeyFilePath)
	assert.Equal(t, exampleRecords(), result.Records)
	assert.Equal(t, 2, result.Submissions)
	assert.Equal(t, 1, result.Empty)
	assert.Equal(t, 3, result.Files())
	assert.Equal(t, 6, result.Pages)

	assert.Equal(t, exampleRecords(), readKeyFile(t, result.KeyFilePath))
	n, err := pdf.PageCount(result.MeldedPath)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	assert.Equal(t, []string{
		filepath.Join(root, "A", "fileA.pdf"),
		filepath.Join(root, "B", "file1.pdf"),
		filepath.Join(root, "B", "file2.pdf"),
	}, pdf.mergeInputs)

	out := buf.String()
	assert.Contains(t, out, "warning: no PDFs in C, skipped")
	assert.Contains(t, out, "[1/2] melded A")
	assert.Contains(t, out, "[2/2] melded B")

	// Only the pair and the submissions folder remain; staging is cleaned up.
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"submissions", types.DefaultMeldedFileName, types.DefaultKeyFileName}, names)
}

func TestMeldDeterministic(t *testing.T) {
	root := exampleTree(t)
	cfg := types.MeldConfig{RootDir: root, Collision: types.CollisionOverwrite}

	first, err := Meld(context.Background(), &fakePDF{}, cfg, Options{})
	require.NoError(t, err)
	firstKey, err := os.ReadFile(first.KeyFilePath)
	require.NoError(t, err)

	second, err := Meld(context.Background(), &fakePDF{}, cfg, Options{})
	require.NoError(t, err)
	secondKey, err := os.ReadFile(second.KeyFilePath)
	require.NoError(t, err)

	assert.Equal(t, firstKey, secondKey)
}

func TestMeldUnreadableFileAbortsRun(t *testing.T) {
	root := exampleTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "B", "file2.pdf"), []byte("garbage"), 0o644))

	meldedPath, keyPath := OutputPaths(types.MeldConfig{RootDir: root})
	require.NoError(t, os.WriteFile(meldedPath, []byte("old melded"), 0o644))
	require.NoError(t, os.WriteFile(keyPath, []byte("old,key.pdf,1\n"), 0o644))

	_, err := Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: root, Collision: types.CollisionOverwrite}, Options{})

	var unreadable *SourceFileUnreadableError
	require.True(t, errors.As(err, &unreadable), "got %v", err)
	assert.Equal(t, "B", unreadable.Key)
	assert.Equal(t, "file2.pdf", unreadable.File)

	// The previous pair is untouched.
	data, err := os.ReadFile(meldedPath)
	require.NoError(t, err)
	assert.Equal(t, "old melded", string(data))
	data, err = os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, "old,key.pdf,1\n", string(data))
}

func TestMeldUnreadableFileLeavesNoKeyFile(t *testing.T) {
	root := exampleTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "fileA.pdf"), []byte("garbage"), 0o644))

	_, err := Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: root}, Options{})
	require.Error(t, err)

	meldedPath, keyPath := OutputPaths(types.MeldConfig{RootDir: root})
	assert.NoFileExists(t, meldedPath)
	assert.NoFileExists(t, keyPath)
}

func TestMeldZeroPageFile(t *testing.T) {
	root := exampleTree(t)
	writeFake(t, filepath.Join(root, "A", "fileA.pdf"), 0)

	_, err := Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: root}, Options{})
	var unreadable *SourceFileUnreadableError
	require.True(t, errors.As(err, &unreadable))
	assert.Contains(t, err.Error(), "no pages")
}

func TestMeldConservationCheck(t *testing.T) {
	root := exampleTree(t)

	_, err := Meld(context.Background(), &fakePDF{extraPages: 1}, types.MeldConfig{RootDir: root}, Options{})
	var cons *ConservationError
	require.True(t, errors.As(err, &cons))
	assert.Equal(t, 6, cons.Recorded)
	assert.Equal(t, 7, cons.Melded)

	_, keyPath := OutputPaths(types.MeldConfig{RootDir: root})
	assert.NoFileExists(t, keyPath)
}

func TestMeldExistingOutput(t *testing.T) {
	tests := []struct {
		name    string
		policy  types.CollisionPolicy
		confirm collision.Confirmer
		wantErr bool
	}{
		{"fail", types.CollisionFail, nil, true},
		{"default is fail", "", nil, true},
		{"skip", types.CollisionSkip, nil, true},
		{"prompt declined", types.CollisionPrompt, collision.Fixed(false), true},
		{"prompt accepted", types.CollisionPrompt, collision.Fixed(true), false},
		{"overwrite", types.CollisionOverwrite, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := exampleTree(t)
			meldedPath, _ := OutputPaths(types.MeldConfig{RootDir: root})
			require.NoError(t, os.WriteFile(meldedPath, []byte("old"), 0o644))

			pdf := &fakePDF{}
			_, err := Meld(context.Background(), pdf, types.MeldConfig{RootDir: root, Collision: tt.policy}, Options{Confirm: tt.confirm})
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var exists *collision.ExistsError
			require.True(t, errors.As(err, &exists), "got %v", err)
			assert.Nil(t, pdf.mergeInputs, "nothing merged before the collision was resolved")
		})
	}
}

func TestMeldNoSubmissions(t *testing.T) {
	root := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "C"), 0o755))

	_, err := Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: root}, Options{})
	assert.ErrorIs(t, err, ErrNoSubmissions)
}

func TestMeldRootNotDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.pdf")
	writeFake(t, file, 1)

	_, err := Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: file}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	_, err = Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: file + "-missing"}, Options{})
	assert.Error(t, err)
}

func TestMeldLabels(t *testing.T) {
	root := filepath.Join(t.TempDir(), "subs")
	writeFake(t, filepath.Join(root, "Ada Lovelace_1234567_file_", "a.pdf"), 1)
	writeFake(t, filepath.Join(root, "Ada Lovelace_1234567_file_", "b.pdf"), 1)
	writeFake(t, filepath.Join(root, "misc", "c.pdf"), 2)

	var buf bytes.Buffer
	pdf := &fakePDF{}
	cfg := types.MeldConfig{RootDir: root, Labels: true, ShowNames: false, Naming: types.NamingNameID}
	result, err := Meld(context.Background(), pdf, cfg, Options{Status: status.New(&buf, false)})
	require.NoError(t, err)

	// Every file of a labelled submission is stamped, since unmeld returns
	// each file separately.
	assert.Equal(t, map[string]string{
		filepath.Join(root, "Ada Lovelace_1234567_file_", "a.pdf"): "1234567",
		filepath.Join(root, "Ada Lovelace_1234567_file_", "b.pdf"): "1234567",
	}, pdf.stamps)
	assert.Contains(t, buf.String(), "bad folder name for name-id naming: misc")

	// Labelled copies keep their page counts; records name the originals.
	assert.Equal(t, "a.pdf", result.Records[0].SourceFileName)
	assert.Equal(t, "b.pdf", result.Records[1].SourceFileName)
	assert.Equal(t, 4, result.Pages)
	assert.NotEqual(t, filepath.Join(root, "Ada Lovelace_1234567_file_", "a.pdf"), pdf.mergeInputs[0])
	assert.NotEqual(t, filepath.Join(root, "Ada Lovelace_1234567_file_", "b.pdf"), pdf.mergeInputs[1])
	assert.NotEqual(t, pdf.mergeInputs[0], pdf.mergeInputs[1])
	assert.Equal(t, filepath.Join(root, "misc", "c.pdf"), pdf.mergeInputs[2])
}

func TestMeldUnknownNamingScheme(t *testing.T) {
	root := exampleTree(t)
	_, err := Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: root, Naming: "surname"}, Options{})
	require.Error(t, err)
}

func TestMeldCustomOutput(t *testing.T) {
	root := exampleTree(t)
	outDir := filepath.Join(t.TempDir(), "marking")
	cfg := types.MeldConfig{RootDir: root, OutputDir: outDir, MeldedFileName: "week3.pdf", KeyFileName: "week3.csv"}

	result, err := Meld(context.Background(), &fakePDF{}, cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "week3.pdf"), result.MeldedPath)
	assert.FileExists(t, filepath.Join(outDir, "week3.csv"))
}

func TestMeldCancelled(t *testing.T) {
	root := exampleTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Meld(ctx, &fakePDF{}, types.MeldConfig{RootDir: root}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeldSizeWarning(t *testing.T) {
	root := exampleTree(t)
	var buf bytes.Buffer
	cfg := types.MeldConfig{RootDir: root, SizeWarningBytes: 1}

	_, err := Meld(context.Background(), &fakePDF{}, cfg, Options{Status: status.New(&buf, false)})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "warning: fileA.pdf is")
}

func TestMeldScaleWidth(t *testing.T) {
	tests := []struct {
		name  string
		width float64
	}{
		{"A4", types.DefaultScaleWidth},
		{"disabled", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := exampleTree(t)
			pdf := &fakePDF{}
			result, err := Meld(context.Background(), pdf, types.MeldConfig{RootDir: root, ScaleWidth: tt.width}, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.width, pdf.scaledTo)
			assert.Equal(t, 6, result.Pages)
		})
	}
}

func TestMeldAnnotationWarning(t *testing.T) {
	root := filepath.Join(t.TempDir(), "subs")
	dir := filepath.Join(root, "A")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "busy.pdf"), []byte("pages:1\nannots:6\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calm.pdf"), []byte("pages:1\nannots:5\n"), 0o644))

	var buf bytes.Buffer
	_, err := Meld(context.Background(), &fakePDF{}, types.MeldConfig{RootDir: root}, Options{Status: status.New(&buf, false)})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "warning: busy.pdf has 6 annotations on its first page")
	assert.NotContains(t, buf.String(), "calm.pdf has")

	buf.Reset()
	cfg := types.MeldConfig{RootDir: root, AnnotationWarning: 10, Collision: types.CollisionOverwrite}
	_, err = Meld(context.Background(), &fakePDF{}, cfg, Options{Status: status.New(&buf, false)})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "annotations on its first page")
}
