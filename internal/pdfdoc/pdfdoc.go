// Package pdfdoc is the thin layer over pdfcpu that meld and unmeld use to
// count, concatenate, slice, and stamp PDF pages. It holds no bookkeeping of
// its own; page ranges are computed by callers.
package pdfdoc

import (
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// Style describes how stamped text is placed on a page.
type Style struct {
	Font     string
	Points   int
	Color    string // pdfcpu color: "r g b" in 0..1
	Position string // pdfcpu anchor: tl, tc, tr, l, c, r, bl, bc, br
	OffsetX  int
	OffsetY  int
}

// LabelStyle marks the first page of each source file in the melded document.
var LabelStyle = Style{
	Font:     "Helvetica",
	Points:   8,
	Color:    "1 0 0",
	Position: "tl",
	OffsetX:  5,
	OffsetY:  -5,
}

// InitialsStyle marks the first page of each unmelded file with the marker's initials.
var InitialsStyle = Style{
	Font:     "Helvetica-Bold",
	Points:   16,
	Color:    "1 0 0",
	Position: "bl",
	OffsetX:  20,
	OffsetY:  20,
}

// description renders s in pdfcpu's watermark description syntax.
func (s Style) description() string {
	return fmt.Sprintf("fontname:%s, points:%d, fillcolor:%s, position:%s, offset:%d %d, scalefactor:1 abs, rotation:0",
		s.Font, s.Points, s.Color, s.Position, s.OffsetX, s.OffsetY)
}

// Library performs page operations with a shared pdfcpu configuration.
type Library struct {
	conf *model.Configuration
}

// New returns a Library using pdfcpu's relaxed validation, which accepts the
// slightly malformed PDFs that scanners and phone apps produce.
func New() *Library {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Library{conf: conf}
}

// PageCount opens path and returns its number of pages.
func (l *Library) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := api.PageCount(f, l.conf)
	if err != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", path, err)
	}
	return n, nil
}

// Merge concatenates inFiles, in order, into outFile.
func (l *Library) Merge(inFiles []string, outFile string) error {
	if len(inFiles) == 0 {
		return fmt.Errorf("merge: no input files")
	}
	if err := api.MergeCreateFile(inFiles, outFile, false, l.conf); err != nil {
		return fmt.Errorf("merging %d files into %s: %w", len(inFiles), outFile, err)
	}
	return nil
}

// StampFirstPage copies the PDF read from rs to w with text stamped on page 1.
func (l *Library) StampFirstPage(rs io.ReadSeeker, w io.Writer, text string, style Style) error {
	wm, err := api.TextWatermark(text, style.description(), true, false, pdftypes.POINTS)
	if err != nil {
		return fmt.Errorf("stamp style: %w", err)
	}
	if err := api.AddWatermarks(rs, w, []string{"1"}, wm, l.conf); err != nil {
		return fmt.Errorf("stamping %q: %w", text, err)
	}
	return nil
}

// StampFirstPageFile writes a copy of inFile to outFile with text stamped on page 1.
func (l *Library) StampFirstPageFile(inFile, outFile, text string, style Style) error {
	if err := api.AddTextWatermarksFile(inFile, outFile, []string{"1"}, true, text, style.description(), l.conf); err != nil {
		return fmt.Errorf("stamping %s: %w", inFile, err)
	}
	return nil
}

// ScaleToWidth rescales every page of path, in place, to width points wide.
// Each page keeps its aspect ratio; pages without content are left alone.
func (l *Library) ScaleToWidth(path string, width float64) error {
	res := &model.Resize{
		Unit:    pdftypes.POINTS,
		PageDim: &pdftypes.Dim{Width: width},
		UserDim: true,
	}
	if err := api.ResizeFile(path, "", nil, res, l.conf); err != nil {
		return fmt.Errorf("scaling %s to %g points: %w", path, width, err)
	}
	return nil
}

// FirstPageAnnotations returns the number of annotations on page 1 of path.
func (l *Library) FirstPageAnnotations(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pages, err := api.Annotations(f, []string{"1"}, l.conf)
	if err != nil {
		return 0, fmt.Errorf("listing annotations of %s: %w", path, err)
	}
	n := 0
	for _, annots := range pages[1] {
		n += len(annots.Map)
	}
	return n, nil
}

// Document is a PDF held in memory so that many page ranges can be sliced
// from it without re-reading the file.
type Document struct {
	ctx *model.Context
}

// Open reads and validates the PDF at path.
func (l *Library) Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, l.conf)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &Document{ctx: ctx}, nil
}

// PageCount returns the document's number of pages.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// WritePages writes a new PDF holding the pages in r, in order, to w.
func (d *Document) WritePages(w io.Writer, r types.PageRange) error {
	if r.Count <= 0 || r.Start < 0 || r.End() > d.ctx.PageCount {
		return fmt.Errorf("page range %s outside document of %d pages", r, d.ctx.PageCount)
	}
	out, err := pdfcpu.ExtractPages(d.ctx, r.PageNumbers(), false)
	if err != nil {
		return fmt.Errorf("extracting pages %s: %w", r, err)
	}
	if err := api.WriteContext(out, w); err != nil {
		return fmt.Errorf("writing pages %s: %w", r, err)
	}
	return nil
}
