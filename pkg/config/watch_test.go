package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const watchInitialYAML = `
default_window: 1m
signals:
  - name: latency_ms
`

const watchUpdatedYAML = `
default_window: 5m
signals:
  - name: latency_ms
`

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// awaitChange waits for one onChange delivery, or fails.
func awaitChange(t *testing.T, changes <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-changes:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
		return nil
	}
}

// assertNoChange asserts onChange stays silent long enough to cover the
// debounce window.
func assertNoChange(t *testing.T, changes <-chan *Config) {
	t.Helper()
	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload delivered: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatch_ReloadsOnValidWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, watchInitialYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher a moment to attach before touching the file.
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, path, watchUpdatedYAML)
	cfg := awaitChange(t, changes)
	if cfg.DefaultWindow != 5*time.Minute {
		t.Errorf("reloaded default_window = %v, want 5m", cfg.DefaultWindow)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestWatch_KeepsPreviousOnBrokenReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, watchInitialYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) { changes <- cfg })
	}()
	time.Sleep(100 * time.Millisecond)

	// A broken write must not reach onChange; the caller keeps whatever
	// config it already built.
	writeConfig(t, path, "signals: [")
	assertNoChange(t, changes)

	// The watcher is still alive: the next valid write lands.
	writeConfig(t, path, watchUpdatedYAML)
	cfg := awaitChange(t, changes)
	if cfg.DefaultWindow != 5*time.Minute {
		t.Errorf("reloaded default_window = %v, want 5m", cfg.DefaultWindow)
	}
}

func TestWatch_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if err := Watch(context.Background(), path, func(*Config) {}); err == nil {
		t.Fatal("Watch accepted a path that does not exist")
	}
}
