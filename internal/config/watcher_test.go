package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/paws/internal/logging"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher[T any](t *testing.T, path string, loader func(string) (T, error), opts ...WatcherOption[T]) *Watcher[T] {
	t.Helper()
	w := NewConfigWatcher(path, loader, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	// fsnotify needs a moment before the first event is reliable.
	time.Sleep(50 * time.Millisecond)
	return w
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "name = \"initial\"\nvalue = 1\n")
	received := make(chan testConfig, 1)

	w := startWatcher(t, path, loadTestConfig, WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(cfg testConfig) { received <- cfg })

	if err := os.WriteFile(path, []byte("name = \"updated\"\nvalue = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("got %+v, want name=updated, value=42", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestWatcherFollowsAtomicSave(t *testing.T) {
	path := writeFile(t, "value = 1\n")
	received := make(chan testConfig, 1)

	w := startWatcher(t, path, loadTestConfig, WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(cfg testConfig) { received <- cfg })

	tmp := filepath.Join(filepath.Dir(path), ".config.toml.swp")
	if err := os.WriteFile(tmp, []byte("value = 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Value != 7 {
			t.Errorf("value = %d, want 7", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rename over the config file was not picked up")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := writeFile(t, "value = 1\n")
	var count atomic.Int32

	w := startWatcher(t, path, loadTestConfig, WithDebounce[testConfig](20*time.Millisecond))
	w.OnReload(func(testConfig) { count.Add(1) })

	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "rig.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Errorf("reloads = %d, want 0", got)
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := writeFile(t, "value = 0\n")
	var count, last atomic.Int32

	w := startWatcher(t, path, loadTestConfig, WithDebounce[testConfig](200*time.Millisecond))
	w.OnReload(func(cfg testConfig) {
		count.Add(1)
		last.Store(int32(cfg.Value))
	})

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(path, fmt.Appendf(nil, "value = %d\n", i), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(30 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final value 5, got %d", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := writeFile(t, "value = 1\n")
	errs := make(chan error, 1)
	configs := make(chan testConfig, 1)

	w := startWatcher(t, path, loadTestConfig,
		WithDebounce[testConfig](50*time.Millisecond),
		WithErrorHandler[testConfig](func(err error) { errs <- err }),
	)
	w.OnReload(func(cfg testConfig) { configs <- cfg })

	if err := os.WriteFile(path, []byte("invalid toml [[["), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-configs:
		t.Fatal("handlers should not run when loading fails")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcherUnsubscribeAndStop(t *testing.T) {
	path := writeFile(t, "value = 1\n")
	var kept, removed atomic.Int32

	w := startWatcher(t, path, loadTestConfig, WithDebounce[testConfig](30*time.Millisecond))
	w.OnReload(func(testConfig) { kept.Add(1) })
	unsub := w.OnReload(func(testConfig) { removed.Add(1) })
	unsub()

	if err := os.WriteFile(path, []byte("value = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for kept.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if kept.Load() != 1 || removed.Load() != 0 {
		t.Fatalf("kept = %d, removed = %d", kept.Load(), removed.Load())
	}

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("value = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if kept.Load() != 1 {
		t.Errorf("handler ran after Stop")
	}
}

func TestWatcherReloadsLoggingLevels(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")
	received := make(chan logging.Config, 1)

	w := startWatcher(t, path, LoadLoggingConfig, WithDebounce[logging.Config](50*time.Millisecond))
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n[logging.modules]\ndrawer = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Modules["drawer"] != "debug" {
			t.Errorf("modules = %v", cfg.Modules)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for logging reload")
	}
}
