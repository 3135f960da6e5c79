package engine

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// SchemaWatcher reloads a modules file into a SchemaEngine when it changes.
type SchemaWatcher struct {
	schema  *SchemaEngine
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	once    sync.Once

	// OnReload, when set, is called after every reload attempt.
	OnReload func(modules int, err error)
}

// NewSchemaWatcher creates a watcher for path. Call Start to begin watching.
func NewSchemaWatcher(schema *SchemaEngine, path string, logger zerolog.Logger) (*SchemaWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return &SchemaWatcher{
		schema: schema,
		path:   absPath,
		logger: logger.With().Str("component", "schema-watch").Logger(),
		stopCh: make(chan struct{}),
	}, nil
}

// Reload reads the modules file and replaces the schema. A bad file keeps
// the current schema.
func (w *SchemaWatcher) Reload() error {
	modules, err := LoadModulesFile(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("modules reload failed, keeping old schema")
		w.report(0, err)
		return err
	}
	if err := w.schema.Replace(modules); err != nil {
		w.logger.Error().Err(err).Msg("modules reload rejected, keeping old schema")
		w.report(0, err)
		return err
	}
	w.logger.Info().Int("modules", len(modules)).Msg("modules reloaded")
	w.report(len(modules), nil)
	return nil
}

func (w *SchemaWatcher) report(modules int, err error) {
	if w.OnReload != nil {
		w.OnReload(modules, err)
	}
}

// Start watches the file's directory so atomic saves are seen too.
func (w *SchemaWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	w.watcher = watcher
	go w.loop()

	w.logger.Info().Str("path", w.path).Msg("watching modules file for changes")
	return nil
}

// Stop ends the watch. It is safe to call more than once.
func (w *SchemaWatcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *SchemaWatcher) loop() {
	filename := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug().Str("event", event.Op.String()).Msg("modules file changed")
				_ = w.Reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")
		case <-w.stopCh:
			return
		}
	}
}
