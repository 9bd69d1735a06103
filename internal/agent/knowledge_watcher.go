package agent

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// knowledgeWatcher ingests knowledge files that are created or modified
// under the watched directories. Rapid saves are debounced per path.
type knowledgeWatcher struct {
	watcher  *fsnotify.Watcher
	ingest   func(ctx context.Context, path string)
	debounce time.Duration

	pending map[string]time.Time
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newKnowledgeWatcher(dirs []string, debounce time.Duration, ingest func(ctx context.Context, path string)) (*knowledgeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	kw := &knowledgeWatcher{
		watcher:  w,
		ingest:   ingest,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, dir := range dirs {
		kw.addTree(dir)
	}
	return kw, nil
}

// addTree watches dir and its subdirectories; fsnotify is not recursive
func (kw *knowledgeWatcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := kw.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("dir", path).Msg("Failed to watch knowledge directory")
		}
		return nil
	})
}

func (kw *knowledgeWatcher) start(ctx context.Context) {
	go kw.run(ctx)
}

// stop ends the event loop and waits for it to exit
func (kw *knowledgeWatcher) stop() {
	close(kw.stopCh)
	<-kw.doneCh
	if err := kw.watcher.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing knowledge watcher")
	}
}

func (kw *knowledgeWatcher) run(ctx context.Context) {
	defer close(kw.doneCh)

	tick := time.NewTicker(max(10*time.Millisecond, kw.debounce/4))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-kw.stopCh:
			return

		case event, ok := <-kw.watcher.Events:
			if !ok {
				return
			}
			kw.handle(event)

		case err, ok := <-kw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Knowledge watcher error")

		case <-tick.C:
			kw.flush(ctx)
		}
	}
}

func (kw *knowledgeWatcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			kw.addTree(event.Name)
		}
		return
	}
	if !contains(supportedKnowledgeTypes, fileType(event.Name)) {
		return
	}

	kw.mu.Lock()
	kw.pending[event.Name] = time.Now()
	kw.mu.Unlock()
}

// flush ingests paths that have been quiet for the debounce period
func (kw *knowledgeWatcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string

	kw.mu.Lock()
	for path, seen := range kw.pending {
		if now.Sub(seen) >= kw.debounce {
			ready = append(ready, path)
			delete(kw.pending, path)
		}
	}
	kw.mu.Unlock()

	for _, path := range ready {
		log.Debug().Str("file", path).Msg("Knowledge file changed")
		kw.ingest(ctx, path)
	}
}
