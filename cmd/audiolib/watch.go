package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/importer"
)

// createWatchCommand создает команду watch
func (app *Application) createWatchCommand(ctx context.Context) *cobra.Command {
	var flags trackFlags

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Import audio files dropped into a directory",
		Long: `Watch a directory and import every new mp3, wav, ogg or webm file.
Without an argument the import_dir from the config is used. Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := app.Config.ImportDir
			if len(args) == 1 {
				dir = args[0]
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return app.watchDir(ctx, dir, opts)
		},
	}
	flags.register(cmd)
	return cmd
}

func (app *Application) watchDir(ctx context.Context, dir string, opts importer.Options) error {
	if err := app.load(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	fmt.Fprintf(app.out, "👀 Следим за каталогом: %s\n", dir)
	fmt.Fprintf(app.out, "   [Ctrl+C] - остановить\n")

	watcher := importer.NewWatcher(app.Importer, dir, opts,
		importer.WithResultHandler(func(path string, created *data.Track, err error) {
			name := filepath.Base(path)
			if err != nil {
				fmt.Fprintf(app.out, "❌ %s: %v\n", name, err)
				return
			}
			fmt.Fprintf(app.out, "✅ %s → %s - %s (%s)\n", name, created.Artist, created.Title, created.ID)
		}))

	if err := watcher.Run(ctx); err != nil {
		return fmt.Errorf("ошибка наблюдения за каталогом: %w", err)
	}

	fmt.Fprintln(app.out, "⏹️  Наблюдение остановлено")
	return nil
}
