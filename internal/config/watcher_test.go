package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"chitchat/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, logger *logrus.Logger) (*Watcher, context.CancelFunc, <-chan error) {
	t.Helper()
	w := NewWatcher(path, logger)
	w.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return w.Config() != nil }, time.Second, 5*time.Millisecond)
	return w, cancel, done
}

// touch rewrites path with a modification time safely after the last one.
func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
}

func TestWatcher_StartFailsOnInvalidConfig(t *testing.T) {
	clearEnv(t)
	logger, _ := test.NewNullLogger()

	err := NewWatcher(writeConfig(t, `{}`), logger).Start(context.Background())
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestWatcher_ReloadsAndNotifies(t *testing.T) {
	clearEnv(t)
	logger, hook := test.NewNullLogger()
	path := writeConfig(t, `{"database": {"path": "a.db"}, "log_level": "info"}`)

	w, cancel, done := startWatcher(t, path, logger)
	defer cancel()

	var seen atomic.Value
	w.OnChange(func(cfg *models.Config) { seen.Store(cfg.LogLevel) })

	touch(t, path, `{"database": {"path": "a.db"}, "log_level": "warn"}`)

	require.Eventually(t, func() bool {
		level, _ := seen.Load().(string)
		return level == "warn"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "warn", w.Config().LogLevel)

	messages := []string{}
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "Log level changed")

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_KeepsPreviousConfigOnBadReload(t *testing.T) {
	clearEnv(t)
	logger, hook := test.NewNullLogger()
	path := writeConfig(t, `{"database": {"path": "a.db"}, "log_level": "info"}`)

	w, cancel, _ := startWatcher(t, path, logger)
	defer cancel()

	var calls atomic.Int32
	w.OnChange(func(*models.Config) { calls.Add(1) })

	touch(t, path, `{"database": `)

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Failed to reload configuration, keeping previous" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "info", w.Config().LogLevel)
	assert.Zero(t, calls.Load())
}

func TestWatcher_CallbackPanicIsContained(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := NewWatcher("unused.json", logger)

	w.runCallback(func(*models.Config) { panic("boom") }, &models.Config{})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Config change callback panicked", entry.Message)
}
