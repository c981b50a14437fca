package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/hazadus/go-audiolib/internal/data"
)

// DefaultStableDelay - сколько файл должен не меняться перед импортом
const DefaultStableDelay = 500 * time.Millisecond

// minCheckInterval - нижняя граница периода проверки файлов
const minCheckInterval = 10 * time.Millisecond

// ResultHandler получает результат импорта каждого файла
type ResultHandler func(path string, created *data.Track, err error)

// WatcherOption настраивает Watcher
type WatcherOption func(*Watcher)

// WithStableDelay задает задержку стабильности файла
func WithStableDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.stableDelay = d
	}
}

// WithResultHandler задает обработчик результатов импорта
func WithResultHandler(h ResultHandler) WatcherOption {
	return func(w *Watcher) {
		w.handler = h
	}
}

// Watcher следит за каталогом и импортирует появляющиеся в нем аудиофайлы
type Watcher struct {
	importer    *Importer
	dir         string
	opts        Options
	stableDelay time.Duration
	handler     ResultHandler
}

// NewWatcher создает наблюдателя за каталогом
func NewWatcher(importer *Importer, dir string, opts Options, watcherOpts ...WatcherOption) *Watcher {
	w := &Watcher{
		importer:    importer,
		dir:         dir,
		opts:        opts,
		stableDelay: DefaultStableDelay,
	}
	for _, opt := range watcherOpts {
		opt(w)
	}
	return w
}

// Run следит за каталогом до отмены контекста
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ошибка создания наблюдателя: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("ошибка подписки на каталог %s: %w", w.dir, err)
	}

	log.Info().Str("dir", w.dir).Msg("Watching directory for new tracks")

	// Файл импортируется, когда он не менялся stableDelay
	pendingFiles := make(map[string]time.Time)
	processed := make(map[string]bool)

	checkTicker := time.NewTicker(max(w.stableDelay/5, minCheckInterval))
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsAudioFile(event.Name) {
				continue
			}
			pendingFiles[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", w.dir).Msg("Watcher error")

		case <-checkTicker.C:
			now := time.Now()
			for path, lastEvent := range pendingFiles {
				if now.Sub(lastEvent) < w.stableDelay {
					continue // файл может еще записываться
				}
				delete(pendingFiles, path)

				if processed[path] {
					continue
				}
				processed[path] = true

				w.importPath(ctx, path)
			}
		}
	}
}

func (w *Watcher) importPath(ctx context.Context, path string) {
	created, err := w.importer.ImportFile(ctx, path, w.opts)
	if err != nil {
		log.Error().Err(err).Str("file", filepath.Base(path)).Msg("Auto-import failed")
	}
	if w.handler != nil {
		w.handler(path, created, err)
	}
}
