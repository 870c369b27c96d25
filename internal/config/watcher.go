package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/okkern/thermactl/internal/errors"
	"github.com/okkern/thermactl/internal/logger"
)

// Watcher monitors a configuration file and delivers freshly loaded
// configurations to a callback when the file changes
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	callback func(*Config)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrWatchConfig, err)
	}

	return &Watcher{
		path:     path,
		watcher:  w,
		callback: callback,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins watching for file changes. The watch is registered on the
// directory rather than the file itself so it survives editors and
// provisioning tools that replace the file on save.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return errFactory.Wrap(errors.ErrWatchConfig, err)
	}

	logger.Info().Str("path", w.path).Msg("Watching configuration file")

	go w.watch()

	return nil
}

// Stop stops watching for changes. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)

	return w.watcher.Close()
}

func (w *Watcher) watch() {
	log := logger.WithComponent("config_watcher")
	filename := filepath.Base(w.path)

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(WithConfigFile(w.path))
			if err != nil {
				log.Error().Err(err).Msg("Failed to reload configuration, keeping previous")
				continue
			}

			log.Info().Str("event", event.Op.String()).Msg("Configuration reloaded")

			if w.callback != nil {
				w.callback(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Configuration watcher error")
		}
	}
}
