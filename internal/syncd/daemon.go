// Package syncd provides the long-running sync daemon.
//
// The daemon:
// 1. Runs the sync service (periodic pull, push, queue draining)
// 2. Watches a trigger file so other processes can request an immediate
//    sync by touching it (the desktop shell does this on window focus)
// 3. Handles graceful shutdown
package syncd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/focalapp/focal/internal/sync"
)

// TriggerFileName is the well-known file other processes touch to
// request an immediate sync.
const TriggerFileName = "sync.trigger"

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait before acting on trigger
	// touches. This batches rapid touches together.
	DebounceInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[syncd] ", log.LstdFlags),
	}
}

// Daemon runs the sync service and reacts to external triggers.
type Daemon struct {
	service     *sync.Service
	triggerPath string
	config      *Config

	watcher *fsnotify.Watcher

	pendingMu gosync.Mutex
	pendingAt time.Time

	wg gosync.WaitGroup
}

// New creates a Daemon around an already-constructed sync service.
// triggerDir is the directory where the trigger file lives, normally
// the same directory as the database.
func New(service *sync.Service, triggerDir string) (*Daemon, error) {
	return NewWithConfig(service, triggerDir, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(service *sync.Service, triggerDir string, config *Config) (*Daemon, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if triggerDir == "" {
		return nil, fmt.Errorf("triggerDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{
		service:     service,
		triggerPath: filepath.Join(triggerDir, TriggerFileName),
		config:      config,
		watcher:     watcher,
	}, nil
}

// TriggerPath returns the file whose creation or touch requests a sync.
func (d *Daemon) TriggerPath() string {
	return d.triggerPath
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Start the sync service (initial pull, queue drain, periodic pulls)
// 2. Watch the trigger file's directory for touches
// 3. Debounce touches into TriggerSync calls
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	if err := d.service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync service: %w", err)
	}

	dir := filepath.Dir(d.triggerPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.service.Stop()
		return fmt.Errorf("failed to create trigger directory: %w", err)
	}
	if err := d.watcher.Add(dir); err != nil {
		d.service.Stop()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	d.wg.Add(2)
	go d.watchLoop(ctx)
	go d.debounceLoop(ctx)

	d.config.Logger.Printf("Watching %s", d.triggerPath)

	<-ctx.Done()
	d.config.Logger.Println("Shutting down")

	d.watcher.Close()
	d.wg.Wait()
	d.service.Stop()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchLoop converts trigger-file events into pending-trigger marks.
func (d *Daemon) watchLoop(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != d.triggerPath {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Chmod) == 0 {
				continue
			}
			d.pendingMu.Lock()
			d.pendingAt = time.Now()
			d.pendingMu.Unlock()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// debounceLoop fires a sync once the trigger has been quiet for the
// debounce interval.
func (d *Daemon) debounceLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			d.pendingMu.Lock()
			pending := !d.pendingAt.IsZero() && time.Since(d.pendingAt) >= d.config.DebounceInterval
			if pending {
				d.pendingAt = time.Time{}
			}
			d.pendingMu.Unlock()

			if pending {
				d.config.Logger.Println("Trigger file touched, requesting sync")
				d.service.TriggerSync()
			}
		}
	}
}

// Touch requests a sync from another process by touching the trigger
// file next to the database.
func Touch(triggerDir string) error {
	path := filepath.Join(triggerDir, TriggerFileName)
	if err := os.MkdirAll(triggerDir, 0o755); err != nil {
		return fmt.Errorf("failed to create trigger directory: %w", err)
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to touch trigger file: %w", err)
	}
	return f.Close()
}
