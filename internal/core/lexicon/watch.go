package lexicon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path into store whenever the file is written or replaced.
// A file that fails to parse keeps the previous lexicon in place.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, store *Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create lexicon watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch lexicon dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			lex, err := Load(target)
			if err != nil {
				logger.Warn("lexicon_reload_failed", "path", target, "error", err)
				continue
			}
			store.Replace(lex)
			logger.Info("lexicon_reloaded", "path", target, "synonyms", len(lex.SynonymTable))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("lexicon_watch_error", "error", err)
		}
	}
}
