package unmeld_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/meld"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/pdfdoc/pdftest"
	"github.com/lairdgrouplancaster/MoodleMeld/internal/unmeld"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

func TestMeldUnmeldRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		labels   bool
		initials string
		scale    float64
	}{
		{"plain", false, "", 0},
		{"labelled and initialled", true, "EAL", 0},
		{"scaled to A4 width", true, "", types.DefaultScaleWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "submissions")
			sources := map[string][]int{
				"Ada Lovelace_1001_file_/essay.pdf":   {301, 302},
				"Alan Turing_1002_file_/part1.pdf":    {311, 312, 313},
				"Alan Turing_1002_file_/part2.pdf":    {321},
				"Grace Hopper_1003_file_/answers.pdf": {331, 332, 333, 334},
			}
			for rel, widths := range sources {
				pdftest.Write(t, filepath.Join(root, filepath.FromSlash(rel)), widths...)
			}

			lib := pdfdoc.New()
			result, err := meld.Meld(context.Background(), lib, types.MeldConfig{RootDir: root, Labels: tt.labels, ScaleWidth: tt.scale}, meld.Options{})
			require.NoError(t, err)
			assert.Equal(t, 10, result.Pages)
			assert.Len(t, pdftest.Widths(t, result.MeldedPath), 10)

			summary, err := unmeld.Unmeld(context.Background(), unmeld.Library(lib), types.UnmeldConfig{
				MeldedPath: result.MeldedPath,
				Initials:   tt.initials,
			}, unmeld.Options{})
			require.NoError(t, err)
			assert.Equal(t, 4, summary.Created)
			assert.Equal(t, 0, summary.Unclaimed)

			for rel, widths := range sources {
				dir, file := filepath.Split(filepath.FromSlash(rel))
				out := filepath.Join(summary.OutputDir, dir, file)
				want := widths
				if tt.scale > 0 {
					want = make([]int, len(widths))
					for i := range want {
						want[i] = int(tt.scale)
					}
				}
				assert.Equal(t, want, pdftest.Widths(t, out), rel)
			}
		})
	}
}
