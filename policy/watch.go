// CLAUDE:SUMMARY fsnotify-driven hot reload of the policy file.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce absorbs the write/rename bursts editors produce when
// saving a file.
const reloadDebounce = 300 * time.Millisecond

// Watch reloads the policy whenever the file changes, until ctx ends.
// The parent directory is watched, not the file, so atomic-rename saves
// keep working. Blocks; run it in a goroutine.
func (p *Policy) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("policy: watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if err := p.Reload(path); err != nil {
				logger.Warn("policy: reload failed, keeping previous rules", "path", path, "err", err)
				continue
			}
			logger.Info("policy: reloaded", "path", path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("policy: watcher error", "err", err)
		}
	}
}
