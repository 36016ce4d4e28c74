package filewatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wateringctl/wateringctl/pkg/device"
	"github.com/wateringctl/wateringctl/pkg/log"
)

type write struct {
	path      string
	overwrite bool
	data      string
}

// fakeFiles records uploads and fails the first failures of them.
type fakeFiles struct {
	device.FileSystem

	mu       sync.Mutex
	writes   []write
	failures int
}

func (f *fakeFiles) WriteFile(_ context.Context, path string, overwrite bool, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("device busy")
	}
	f.writes = append(f.writes, write{path: path, overwrite: overwrite, data: string(data)})
	return nil
}

func (f *fakeFiles) last() (write, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return write{}, 0
	}
	return f.writes[len(f.writes)-1], len(f.writes)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func start(t *testing.T, cfg Config, files *fakeFiles) *Plugin {
	t.Helper()
	p := New(cfg)
	err := p.Initialize(context.Background(), device.PluginConfig{
		Files:  files,
		Logger: log.NewNoopLogger(),
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestPlugin_UploadsOnChange(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "index.html")
	if err := os.WriteFile(local, []byte("v1"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files := &fakeFiles{}
	p := start(t, Config{
		LocalPath:     local,
		RemotePath:    "/www/index.html",
		DebounceDelay: 20 * time.Millisecond,
	}, files)

	if err := os.WriteFile(local, []byte("v2"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool {
		w, _ := files.last()
		return w.data == "v2"
	})
	w, _ := files.last()
	if w.path != "/www/index.html" || !w.overwrite {
		t.Errorf("upload = %+v, want overwrite of /www/index.html", w)
	}
	if p.Uploads() < 1 {
		t.Errorf("Uploads() = %d, want >= 1", p.Uploads())
	}
}

func TestPlugin_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "index.html")
	if err := os.WriteFile(local, []byte("v1"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files := &fakeFiles{}
	start(t, Config{
		LocalPath:     local,
		RemotePath:    "/www/index.html",
		DebounceDelay: 10 * time.Millisecond,
	}, files)

	if err := os.WriteFile(filepath.Join(dir, "other.css"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	if _, n := files.last(); n != 0 {
		t.Errorf("uploads = %d, want 0", n)
	}
}

func TestPlugin_InitialUploadRetries(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "config.json")
	if err := os.WriteFile(local, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files := &fakeFiles{failures: 2}
	start(t, Config{
		LocalPath:     local,
		RemotePath:    "/config.json",
		RetryInterval: 10 * time.Millisecond,
		InitialUpload: true,
	}, files)

	waitFor(t, func() bool {
		_, n := files.last()
		return n == 1
	})
	w, _ := files.last()
	if w.data != `{"a":1}` {
		t.Errorf("data = %q", w.data)
	}
}

func TestPlugin_RequiresPaths(t *testing.T) {
	p := New(Config{RemotePath: "/x"})
	err := p.Initialize(context.Background(), device.PluginConfig{
		Files:  &fakeFiles{},
		Logger: log.NewNoopLogger(),
	})
	if err == nil {
		t.Error("Initialize() expected error without local path")
	}
}

func TestPlugin_ShutdownStopsRetrying(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "missing-later.txt")
	if err := os.WriteFile(local, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	files := &fakeFiles{failures: 1 << 30}
	p := New(Config{
		LocalPath:     local,
		RemotePath:    "/x",
		RetryInterval: 5 * time.Millisecond,
		InitialUpload: true,
	})
	if err := p.Initialize(context.Background(), device.PluginConfig{Files: files, Logger: log.NewNoopLogger()}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = p.Shutdown(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}

func TestPlugin_Name(t *testing.T) {
	if New(DefaultConfig()).Name() != "filewatch" {
		t.Error("unexpected plugin name")
	}
}
