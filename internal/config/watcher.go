package config

import (
	"context"
	"os"
	"sync"
	"time"

	"chitchat/internal/constants"
	"chitchat/internal/models"

	"github.com/sirupsen/logrus"
)

// Watcher polls the configuration file and hands every successfully
// reloaded configuration to the registered callbacks.
type Watcher struct {
	configPath   string
	pollInterval time.Duration
	logger       *logrus.Logger
	mu           sync.RWMutex
	config       *models.Config
	callbacks    []func(*models.Config)
}

func NewWatcher(configPath string, logger *logrus.Logger) *Watcher {
	return &Watcher{
		configPath:   configPath,
		pollInterval: constants.ConfigPollIntervalSec * time.Second,
		logger:       logger,
		callbacks:    make([]func(*models.Config), 0),
	}
}

// Start loads the file once, then polls its modification time until ctx is
// cancelled. It returns early only if the initial load fails.
func (w *Watcher) Start(ctx context.Context) error {
	config, err := LoadConfig(w.configPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.config = config
	w.mu.Unlock()

	stat, err := os.Stat(w.configPath)
	if err != nil {
		return err
	}
	lastModTime := stat.ModTime()

	w.logger.WithField("path", w.configPath).Info("Configuration watcher started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Configuration watcher stopping")
			return nil

		case <-ticker.C:
			stat, err := os.Stat(w.configPath)
			if err != nil {
				w.logger.WithError(err).Error("Failed to stat configuration file")
				continue
			}

			if stat.ModTime().After(lastModTime) {
				w.logger.Debug("Configuration file changed")
				lastModTime = stat.ModTime()
				w.reload()
			}
		}
	}
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *models.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(callback func(*models.Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// reload keeps the previous configuration when the new file does not load.
func (w *Watcher) reload() {
	newConfig, err := LoadConfig(w.configPath)
	if err != nil {
		w.logger.WithError(err).Error("Failed to reload configuration, keeping previous")
		return
	}

	w.mu.Lock()
	oldConfig := w.config
	w.config = newConfig
	callbacks := make([]func(*models.Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded successfully")
	w.logChanges(oldConfig, newConfig)

	for _, callback := range callbacks {
		w.runCallback(callback, newConfig)
	}
}

func (w *Watcher) runCallback(cb func(*models.Config), config *models.Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithField("panic", r).Error("Config change callback panicked")
		}
	}()
	cb(config)
}

// logChanges reports settings that take effect without a restart, and
// those that only take effect after one.
func (w *Watcher) logChanges(old, new *models.Config) {
	if old == nil {
		return
	}

	if old.LogLevel != new.LogLevel {
		w.logger.WithFields(logrus.Fields{"old": old.LogLevel, "new": new.LogLevel}).Info("Log level changed")
	}
	for name, enabled := range new.Features {
		if prev, ok := old.Features[name]; !ok || prev != enabled {
			w.logger.WithFields(logrus.Fields{"flag": name, "enabled": enabled}).Info("Feature flag changed")
		}
	}
	if old.Scheduler != new.Scheduler {
		w.logger.Warn("Scheduler settings changed; restart to apply")
	}
	if old.Server != new.Server || old.Database != new.Database {
		w.logger.Warn("Server or database settings changed; restart to apply")
	}
}
