package collision

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    types.CollisionPolicy
		wantErr bool
	}{
		{"", types.CollisionFail, false},
		{"overwrite", types.CollisionOverwrite, false},
		{" Skip ", types.CollisionSkip, false},
		{"PROMPT", types.CollisionPrompt, false},
		{"fail", types.CollisionFail, false},
		{"merge", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type failingConfirmer struct{}

func (failingConfirmer) Confirm(string) (bool, error) { return false, errors.New("stdin closed") }

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))
	missing := filepath.Join(dir, "missing.pdf")

	tests := []struct {
		name    string
		path    string
		policy  types.CollisionPolicy
		c       Confirmer
		want    Decision
		wantErr bool
	}{
		{"missing always written", missing, types.CollisionFail, nil, Write, false},
		{"overwrite", existing, types.CollisionOverwrite, nil, Write, false},
		{"skip", existing, types.CollisionSkip, nil, Skip, false},
		{"fail", existing, types.CollisionFail, nil, Skip, true},
		{"prompt yes", existing, types.CollisionPrompt, Fixed(true), Write, false},
		{"prompt no", existing, types.CollisionPrompt, Fixed(false), Skip, false},
		{"prompt without confirmer", existing, types.CollisionPrompt, nil, Skip, true},
		{"prompt error", existing, types.CollisionPrompt, failingConfirmer{}, Skip, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.path, tt.policy, tt.c)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFailReturnsExistsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Resolve(path, types.CollisionFail, nil)
	var exists *ExistsError
	require.True(t, errors.As(err, &exists))
	assert.Equal(t, path, exists.Path)
}

func TestReadAnswer(t *testing.T) {
	for in, want := range map[string]bool{
		"y\n":   true,
		"Yes\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		" y":    true,
	} {
		got, err := readAnswer(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestTerminalNotInteractive(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	_, err = Terminal{In: f, Out: os.Stderr}.Confirm("overwrite?")
	assert.ErrorIs(t, err, ErrNotInteractive)
}
