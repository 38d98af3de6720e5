package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"askingwho-backend/application/ports"
)

const debounceDuration = 100 * time.Millisecond

// Watcher hot-reloads the dynamic section of the configuration file. It applies
// the log level to an AtomicLevel and serves the current text limits.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	level    zap.AtomicLevel
	mu       sync.RWMutex
	current  DynamicConfig
	onChange []func(old, updated DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

var _ ports.LimitSource = (*Watcher)(nil)

// NewWatcher starts from initial and watches path for changes
func NewWatcher(path string, initial DynamicConfig, level zap.AtomicLevel, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors and config maps replace the file, so watch the directory.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:    path,
		fsw:     fsw,
		level:   level,
		current: initial,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	w.apply(initial)
	return w, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.fsw.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, func() {
				if err := w.Reload(); err != nil {
					w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// Reload reads the file and applies its dynamic section if it is valid
func (w *Watcher) Reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.mu.RLock()
	file := struct {
		Dynamic DynamicConfig `yaml:"dynamic"`
	}{Dynamic: w.current}
	w.mu.RUnlock()

	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := file.Dynamic.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	old := w.current
	w.current = file.Dynamic
	handlers := append([]func(old, updated DynamicConfig){}, w.onChange...)
	w.mu.Unlock()

	w.apply(file.Dynamic)
	if old != file.Dynamic {
		w.logger.Info("Configuration reloaded",
			zap.String("logLevel", file.Dynamic.LogLevel),
			zap.Any("limits", file.Dynamic.Limits),
		)
		for _, handler := range handlers {
			handler(old, file.Dynamic)
		}
	}
	return nil
}

func (w *Watcher) apply(cfg DynamicConfig) {
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		w.level.SetLevel(lvl)
	}
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler func(old, updated DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the dynamic configuration in effect
func (w *Watcher) Current() DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// TextLimits returns the text limits in effect
func (w *Watcher) TextLimits() ports.TextLimits {
	return w.Current().Limits
}
