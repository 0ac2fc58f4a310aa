package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

// ManifestProvider watches a manifest file and republishes parsed entries on
// change. Plugin packaging and loading stay external; the provider only keeps
// the catalog's metadata view current.
type ManifestProvider struct {
	path        string
	logger      *slog.Logger
	mu          sync.RWMutex
	current     []domain.ToolMetadata
	subscribers []chan []domain.ToolMetadata
	watcher     *fsnotify.Watcher
	cancel      context.CancelFunc
}

// NewManifestProvider creates a provider watching the specified manifest file.
func NewManifestProvider(path string, logger *slog.Logger) (*ManifestProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &ManifestProvider{
		path:    absPath,
		logger:  logger,
		watcher: watcher,
		cancel:  cancel,
	}

	// Initial load. A missing file is tolerated: we start empty and keep watching.
	if err := p.load(); err != nil {
		logger.Warn("initial manifest load failed", "path", absPath, "error", err)
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		cancel()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	go p.watchLoop(ctx)

	return p, nil
}

// Current returns the most recently parsed manifest entries.
func (p *ManifestProvider) Current() []domain.ToolMetadata {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe returns a channel receiving manifest updates. The current state
// is delivered immediately.
func (p *ManifestProvider) Subscribe() <-chan []domain.ToolMetadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan []domain.ToolMetadata, 1)
	p.subscribers = append(p.subscribers, ch)
	ch <- p.current
	return ch
}

// Close stops the watcher and cleans up resources.
func (p *ManifestProvider) Close() error {
	p.cancel()
	return p.watcher.Close()
}

func (p *ManifestProvider) load() error {
	entries, err := LoadManifestFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = entries
	subs := make([]chan []domain.ToolMetadata, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- entries:
		default:
			// Subscriber hasn't drained the previous update; drop rather than block.
		}
	}
	return nil
}

func (p *ManifestProvider) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != p.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := p.load(); err != nil {
						p.logger.Error("manifest reload failed", "path", p.path, "error", err)
					} else {
						p.logger.Info("tool manifest reloaded", "path", p.path)
					}
				})
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("manifest watcher error", "error", err)
		}
	}
}
