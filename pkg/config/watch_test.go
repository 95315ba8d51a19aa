package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comet.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)

	updated := minimalYAML + `
server:
  listen_address: "0.0.0.0:9999"
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.ListenAddress != "0.0.0.0:9999" {
			t.Errorf("reloaded config has wrong address: %q", cfg.Server.ListenAddress)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned error: %v", err)
	}
}

func TestWatcherKeepsPreviousOnBrokenReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comet.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Config, 4)
	w := NewWatcher(path, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go w.Watch(ctx, func(cfg *Config) { reloads <- cfg })

	time.Sleep(50 * time.Millisecond)

	// A broken rewrite must not reach the callback.
	if err := os.WriteFile(path, []byte("providers: [broken"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloads:
		t.Fatalf("broken config was delivered: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}

	// A subsequent good rewrite is delivered.
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("valid config after broken one was not delivered")
	}
}
