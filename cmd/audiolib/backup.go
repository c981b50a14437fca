package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/backup"
	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/utils"
)

// createBackupCommand создает команду backup
func (app *Application) createBackupCommand(ctx context.Context) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the library to S3",
		Long: `Upload every track and a YAML manifest to the configured S3 bucket.
With --prune, objects of tracks that are no longer in the library are deleted.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.backupLibrary(ctx, prune)
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "delete objects of removed tracks")
	return cmd
}

func (app *Application) backupLibrary(ctx context.Context, prune bool) error {
	uploader, err := backup.NewUploader(app.Config.BackupConfig())
	if err != nil {
		return fmt.Errorf("ошибка настройки S3: %w", err)
	}

	if err := app.load(ctx); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "☁️  Резервное копирование в бакет %s\n", app.Config.AwsBucketName)
	startTime := time.Now()

	exporter := backup.NewExporter(uploader, app.Catalog)
	result, err := exporter.Export(ctx, prune, func(t data.TrackMetadata) {
		fmt.Fprintf(app.out, "   ⬆️  %s - %s\n", t.Artist, t.Title)
	})
	if err != nil {
		return fmt.Errorf("ошибка резервного копирования: %w", err)
	}

	fmt.Fprintf(app.out, "✅ Загружено треков: %d (%s) за %s\n",
		result.Uploaded,
		utils.FormatFileSize(result.Bytes),
		utils.FormatDuration(time.Since(startTime)))
	if prune {
		fmt.Fprintf(app.out, "🧹 Удалено объектов: %d\n", result.Removed)
	}
	fmt.Fprintf(app.out, "📄 Манифест: %s\n", result.ManifestURL)
	return nil
}
