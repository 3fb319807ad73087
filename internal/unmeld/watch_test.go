package unmeld

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

func TestRewrites(t *testing.T) {
	dir := t.TempDir()
	melded := filepath.Join(dir, "melded_PDF.pdf")
	targets := map[string]bool{melded: true}

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"write melded", melded, fsnotify.Write, true},
		{"create melded", melded, fsnotify.Create, true},
		{"create and write", melded, fsnotify.Create | fsnotify.Write, true},
		{"chmod melded", melded, fsnotify.Chmod, false},
		{"remove melded", melded, fsnotify.Remove, false},
		{"write other file", filepath.Join(dir, "notes.pdf"), fsnotify.Write, false},
		{"create output dir", filepath.Join(dir, "Unmelded"), fsnotify.Create, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewrites(fsnotify.Event{Name: tt.path, Op: tt.op}, targets))
		})
	}
}

func TestWatchRerunsOnRewrite(t *testing.T) {
	cfg := setup(t, exampleKey, 6)
	cfg.Collision = types.CollisionFail

	runs := make(chan *Summary, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, &fakePDF{}, cfg, WatchOptions{
			Debounce: 50 * time.Millisecond,
			OnRun: func(s *Summary, err error) {
				if err == nil {
					runs <- s
				}
			},
		})
	}()

	waitRun := func() *Summary {
		t.Helper()
		select {
		case s := <-runs:
			return s
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for unmeld run")
			return nil
		}
	}

	first := waitRun()
	assert.Equal(t, 3, first.Created)

	// The first run is done and the watcher is installed before it
	// returns; give the event loop a moment to start selecting.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(cfg.MeldedPath, []byte("pages:8\n"), 0o644))

	second := waitRun()
	// Earlier outputs are overwritten regardless of the configured policy.
	assert.Equal(t, 3, second.Created)
	assert.Equal(t, 2, second.Unclaimed)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
