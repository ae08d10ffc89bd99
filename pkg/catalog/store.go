package catalog

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/rulekit/rulekit/pkg/logger"
)

// reloadDebounce coalesces bursts of filesystem events into one rebuild
const reloadDebounce = 500 * time.Millisecond

// Store holds the current catalog snapshot and swaps it atomically on
// reload. Callers capture one snapshot per classification run; a reload
// mid-run never changes what an in-flight caller sees.
type Store struct {
	loader *Loader
	idx    atomic.Pointer[Index]
}

// NewStore creates a Store and performs the initial catalog load. A failed
// initial load is fatal; the engine must not start without a valid catalog.
func NewStore(ctx context.Context, loader *Loader) (*Store, error) {
	s := &Store{loader: loader}
	if err := s.Reload(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to load catalog")
	}
	return s, nil
}

// Snapshot returns the current immutable index
func (s *Store) Snapshot() *Index {
	return s.idx.Load()
}

// Reload rebuilds the index and swaps it in. On failure the previous
// snapshot stays in place.
func (s *Store) Reload(ctx context.Context) error {
	cat, err := s.loader.Load(ctx)
	if err != nil {
		return err
	}

	idx, err := NewIndex(cat)
	if err != nil {
		return err
	}

	s.idx.Store(idx)
	logger.G(ctx).WithField("units", idx.Len()).Debug("Catalog snapshot swapped")
	return nil
}

// Watch reloads the catalog whenever its directories change, until the
// context is cancelled. Rebuild failures keep the previous snapshot and log
// a warning; the store never serves a partially built index.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create catalog watcher")
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range s.loader.Dirs() {
		for _, sub := range []string{rulesDirName, skillsDirName, agentsDirName} {
			path := dir + string(os.PathSeparator) + sub
			if err := watcher.Add(path); err != nil {
				continue
			}
			watched++
		}
		if err := watcher.Add(dir); err == nil {
			watched++
		}
	}
	if watched == 0 {
		return errors.New("no catalog directories available to watch")
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("Catalog watcher error")
		case <-pending:
			if err := s.Reload(ctx); err != nil {
				logger.G(ctx).WithError(err).Warn("Catalog reload failed, keeping previous snapshot")
			}
		}
	}
}
