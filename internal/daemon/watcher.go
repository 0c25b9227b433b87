// Package daemon implements the guardstream drop-folder scanner. Text
// files arriving in the inbox directory are evaluated through the batch
// chunker and their verdicts written to the outbox.
package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceDefault is the default debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// maxConcurrentFiles limits how many inbox files are evaluated
// simultaneously. Evaluations share one units/second budget, so a wide
// pool only queues on the limiter anyway.
const maxConcurrentFiles = 4

// maxQueueSize buffers burst arrivals without blocking the debounce
// flush.
const maxQueueSize = 200

// InboxWatcher watches a directory for new text files using fsnotify.
type InboxWatcher struct {
	inbox    string
	handler  func(path string)
	debounce time.Duration
	log      zerolog.Logger
}

// NewInboxWatcher creates a watcher for the inbox directory.
func NewInboxWatcher(inbox string, handler func(path string), log zerolog.Logger) *InboxWatcher {
	return &InboxWatcher{inbox: inbox, handler: handler, debounce: debounceDefault, log: log}
}

// Run watches the inbox for new text files. Blocks until ctx is
// cancelled.
func (w *InboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.inbox); err != nil {
		return err
	}

	// ready collects paths that passed debounce. A single timer resets
	// on each event; when it fires, all accumulated paths flush to
	// the work queue. No per-file goroutines.
	var mu sync.Mutex
	ready := make(map[string]bool)

	queue := make(chan string, maxQueueSize)

	var wg sync.WaitGroup
	for i := 0; i < maxConcurrentFiles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				w.handler(path)
			}
		}()
	}

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	// Single debounce timer, initialized stopped; the first event
	// starts it.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()

	defer func() {
		debounceTimer.Stop()
		flush()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !isTextFile(event.Name) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("inbox watch error")
		}
	}
}

// isTextFile reports whether the path looks like evaluable text.
func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}
