package unmeld

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lairdgrouplancaster/MoodleMeld/internal/status"
	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// DefaultDebounce is how long Watch waits after the last change before
// unmelding again. PDF editors often save in several writes.
const DefaultDebounce = 2 * time.Second

// WatchOptions configures Watch.
type WatchOptions struct {
	Options

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// OnRun, if set, is called after every run with its outcome.
	OnRun func(*Summary, error)
}

// Watch unmelds once, then again each time the melded document or its key
// file is rewritten, until ctx is cancelled. Outputs of earlier runs are
// always overwritten. A failed run is reported and watching continues.
func Watch(ctx context.Context, pdf PDF, cfg types.UnmeldConfig, opts WatchOptions) error {
	out := opts.Status
	if out == nil {
		out = status.Discard()
		opts.Status = out
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	cfg.Collision = types.CollisionOverwrite

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(cfg.MeldedPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	keyPath, _ := Paths(cfg)
	targets := map[string]bool{
		filepath.Clean(cfg.MeldedPath): true,
		filepath.Clean(keyPath):        true,
	}

	run := func() {
		summary, err := Unmeld(ctx, pdf, cfg, opts.Options)
		if err != nil && !errors.Is(err, context.Canceled) {
			out.Failf("%v", err)
		}
		if opts.OnRun != nil {
			opts.OnRun(summary, err)
		}
	}

	run()
	out.Infof("watching %s for changes", cfg.MeldedPath)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !rewrites(event, targets) {
				continue
			}
			out.Debugf("%s: %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			out.Warnf("watch: %v", err)
		case <-fire:
			fire = nil
			out.Infof("%s changed, unmelding again", filepath.Base(cfg.MeldedPath))
			run()
		}
	}
}

// rewrites reports whether event writes or replaces one of targets.
func rewrites(event fsnotify.Event, targets map[string]bool) bool {
	if !targets[filepath.Clean(event.Name)] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
