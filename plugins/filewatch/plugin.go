// Package filewatch re-uploads local files to the controller whenever they
// change on disk.
package filewatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wateringctl/wateringctl/pkg/device"
	"github.com/wateringctl/wateringctl/pkg/log"
)

// Plugin watches one local file and overwrites RemotePath with its content
// after every change. Bursts of writes are debounced into one upload.
type Plugin struct {
	mu sync.Mutex

	localPath     string
	remotePath    string
	retryInterval time.Duration
	debounceDelay time.Duration
	initialUpload bool

	files    device.FileSystem
	ready    func(ctx context.Context) error
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	trigger  chan struct{}
	uploads  int
}

// Config holds configuration options for the file watch plugin.
type Config struct {
	// LocalPath is the file to watch.
	LocalPath string

	// RemotePath is the device path the file is written to.
	RemotePath string

	// RetryInterval is the delay between upload attempts on failure.
	// Default: 2 seconds
	RetryInterval time.Duration

	// DebounceDelay is the delay to wait after a change before uploading.
	// Default: 200 milliseconds
	DebounceDelay time.Duration

	// InitialUpload uploads the file once when the plugin starts.
	InitialUpload bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval: 2 * time.Second,
		DebounceDelay: 200 * time.Millisecond,
	}
}

// New creates a new file watch plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}
	return &Plugin{
		localPath:     filepath.Clean(cfg.LocalPath),
		remotePath:    cfg.RemotePath,
		retryInterval: cfg.RetryInterval,
		debounceDelay: cfg.DebounceDelay,
		initialUpload: cfg.InitialUpload,
		trigger:       make(chan struct{}, 1),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "filewatch"
}

// Initialize starts watching the local file.
func (p *Plugin) Initialize(ctx context.Context, cfg device.PluginConfig) error {
	if p.localPath == "" || p.remotePath == "" {
		return fmt.Errorf("filewatch: local and remote path are required")
	}

	// The parent directory is watched; editors replace files on save.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filewatch: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.localPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("filewatch: watch %s: %w", filepath.Dir(p.localPath), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.files = cfg.Files
	p.ready = cfg.WaitConnected
	p.logger = cfg.Logger
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("watching file",
		log.String("local", p.localPath),
		log.String("remote", p.remotePath),
	)

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	if p.initialUpload {
		p.debounceUpload(0)
	}
	return nil
}

// Shutdown stops watching and waits for a running upload to give up.
// Uploads run on the watch goroutine, so at most one is in flight.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Uploads returns the number of successful uploads.
func (p *Plugin) Uploads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.localPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceUpload(p.debounceDelay)

		case <-p.trigger:
			p.uploadWithRetry(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("file watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceUpload(delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(delay, func() {
		select {
		case p.trigger <- struct{}{}:
		default:
		}
	})
}

// uploadWithRetry retries until success or context cancellation.
func (p *Plugin) uploadWithRetry(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := p.upload(ctx)
		if err == nil {
			p.mu.Lock()
			p.uploads++
			p.mu.Unlock()
			p.logger.Info("file uploaded",
				log.String("remote", p.remotePath),
				log.Int("attempt", attempt),
			)
			return
		}

		p.logger.Warn("file upload failed",
			log.String("remote", p.remotePath),
			log.Int("attempt", attempt),
			log.Err(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
		}
	}
}

func (p *Plugin) upload(ctx context.Context) error {
	data, err := os.ReadFile(p.localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.localPath, err)
	}
	if p.ready != nil {
		if err := p.ready(ctx); err != nil {
			return err
		}
	}
	return p.files.WriteFile(ctx, p.remotePath, true, data)
}

// Ensure Plugin implements device.Plugin.
var _ device.Plugin = (*Plugin)(nil)
