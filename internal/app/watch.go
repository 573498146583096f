package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/lbforge/internal/fsutil"
)

// Watch builds once, then rebuilds after every burst of changes to the
// inputs until ctx is done. Failed builds are reported and watching goes on.
func (a *App) Watch(ctx context.Context) error {
	if a.config.Output == "" || a.config.Output == "-" {
		return errors.New("watch needs an output file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs, err := fsutil.Dirs(a.config.Paths)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			return err
		}
	}
	a.logger.Info("Watching for changes.", "dirs", len(dirs), "debounce", a.debounce)

	if a.config.HealthcheckPort > 0 {
		srv := a.startHealthcheckServer(a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(srv)
	}

	a.rebuild(ctx)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(a.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(a.debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			a.logger.Info("Watch stopped.")
			return nil
		case <-timerC:
			timerC = nil
			a.rebuild(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("Watcher error.", "error", err)
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&fsnotify.Create != 0 {
				if fi, statErr := os.Stat(evt.Name); statErr == nil && fi.IsDir() {
					if addErr := watcher.Add(evt.Name); addErr != nil {
						a.logger.Warn("Failed to watch new directory.", "path", evt.Name, "error", addErr)
					}
				}
			}
			if a.relevant(evt) {
				a.logger.Debug("Change detected.", "path", evt.Name, "op", evt.Op.String())
				resetTimer()
			}
		}
	}
}

// relevant reports whether evt touches an input: a file with the input
// extension or one named explicitly on the command line. Hidden files and
// the output file are ignored.
func (a *App) relevant(evt fsnotify.Event) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	name := filepath.Clean(evt.Name)
	if name == filepath.Clean(a.config.Output) {
		return false
	}
	if strings.HasSuffix(base, Extension) {
		return true
	}
	for _, p := range a.config.Paths {
		if filepath.Clean(p) == name {
			return true
		}
	}
	return false
}

func (a *App) rebuild(ctx context.Context) {
	res, err := a.Build(ctx)
	a.status.set(res, err)
	switch {
	case errors.Is(err, ErrCompile):
		a.logger.Warn("Build failed; keeping the previous output.", "output", a.config.Output)
	case err != nil:
		a.logger.Error("Build failed.", "error", err)
	default:
		a.logger.Info("Configuration written.", "output", a.config.Output, "files", len(res.Files))
	}
}
