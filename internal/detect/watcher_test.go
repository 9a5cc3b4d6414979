package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/duskd/internal/config"
	"github.com/dokzlo13/duskd/internal/event"
)

func startWatcher(t *testing.T, dir string) (*ConfigWatcher, *event.Dispatcher) {
	t.Helper()
	paths := config.Paths{ConfigDir: dir, StateDir: t.TempDir(), RuntimeDir: t.TempDir()}
	d := event.NewDispatcherWithSize(8)
	w, err := NewConfigWatcher(paths, d)
	if err != nil {
		t.Fatalf("NewConfigWatcher() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w, d
}

func waitReload(t *testing.T, d *event.Dispatcher) {
	t.Helper()
	select {
	case ev := <-d.Events():
		if ev.Kind != event.KindReload {
			t.Fatalf("event = %v, want %v", ev.Kind, event.KindReload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event within 3s")
	}
}

func assertQuiet(t *testing.T, d *event.Dispatcher, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-d.Events():
		t.Fatalf("unexpected %v event", ev.Kind)
	case <-time.After(wait):
	}
}

func TestWatcherDebouncesSaves(t *testing.T) {
	dir := t.TempDir()
	_, d := startWatcher(t, dir)

	cfg := filepath.Join(dir, "duskd.toml")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(cfg, []byte("night_temp = 3300\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	waitReload(t, d)
	assertQuiet(t, d, time.Second)
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	_, d := startWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatal(err)
	}
	assertQuiet(t, d, time.Second)
}

func TestWatcherSeesGeoOverride(t *testing.T) {
	dir := t.TempDir()
	_, d := startWatcher(t, dir)

	geo := filepath.Join(dir, "geo.toml")
	if err := os.WriteFile(geo, []byte("latitude = 52.5\nlongitude = 13.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitReload(t, d)
}

func TestWatcherFollowsActivePreset(t *testing.T) {
	dir := t.TempDir()
	presetDir := filepath.Join(dir, "presets", "work")
	if err := os.MkdirAll(presetDir, 0o755); err != nil {
		t.Fatal(err)
	}
	w, d := startWatcher(t, dir)

	w.WatchPreset(presetDir)
	presetCfg := filepath.Join(presetDir, "duskd.toml")
	if err := os.WriteFile(presetCfg, []byte("day_temp = 6000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitReload(t, d)

	w.WatchPreset("")
	assertQuiet(t, d, time.Second)
	if err := os.WriteFile(presetCfg, []byte("day_temp = 5500\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	assertQuiet(t, d, time.Second)
}
