package fsintegrity

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// CheckFunc receives the result of each re-check; nil means the prompts
// match the lock.
type CheckFunc func(err error)

// Watcher re-runs LoadPolicy and CheckAgainstLock whenever files under the
// trusted root, the manifest or the lock change. Bursts of events are
// debounced into a single check.
type Watcher struct {
	svc      *Service
	onCheck  CheckFunc
	logger   *zap.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	// inflight counts armed or running checks; Run waits for it before returning.
	inflight sync.WaitGroup
}

type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithWatcherLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewWatcher(svc *Service, onCheck CheckFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		svc:      svc,
		onCheck:  onCheck,
		logger:   svc.logger,
		debounce: defaultDebounce,
	}
	for _, o := range opts {
		if o != nil {
			o(w)
		}
	}
	return w
}

// Run watches until ctx is done. The policy must already be loadable.
func (w *Watcher) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root := w.svc.TrustedRoot()
	if root == "" {
		return errors.New("watcher: prompt policy is not loaded")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer fw.Close()

	if err := addTree(fw, root); err != nil {
		return err
	}
	for _, dir := range []string{filepath.Dir(w.svc.ManifestPath()), filepath.Dir(w.svc.LockPath())} {
		if err := fw.Add(dir); err != nil {
			return errors.Wrapf(err, "watch %q", dir)
		}
	}

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				_ = addTree(fw, ev.Name)
			}
			w.logger.Debug("prompt change detected", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			w.schedule(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("prompt watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil && w.timer.Stop() {
		w.inflight.Done()
	}
	w.inflight.Add(1)
	w.timer = time.AfterFunc(w.debounce, func() {
		defer w.inflight.Done()
		if ctx.Err() != nil {
			return
		}
		err := w.svc.LoadPolicy(ctx, w.svc.ManifestPath(), w.svc.LockPath())
		if err == nil {
			err = w.svc.CheckAgainstLock(ctx)
		}
		if ctx.Err() != nil {
			return
		}
		if w.onCheck != nil {
			w.onCheck(err)
		}
	})
}

// stopTimer cancels a pending check and waits for one already running.
func (w *Watcher) stopTimer() {
	w.mu.Lock()
	if w.timer != nil && w.timer.Stop() {
		w.inflight.Done()
	}
	w.timer = nil
	w.mu.Unlock()
	w.inflight.Wait()
}

// addTree watches dir and every directory below it. Non-directories are ignored.
func addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(p); err != nil {
			return errors.Wrapf(err, "watch %q", p)
		}
		return nil
	})
}
