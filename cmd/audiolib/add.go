package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/importer"
	"github.com/hazadus/go-audiolib/internal/utils"
)

// trackFlags - поля трека, задаваемые флагами команд
type trackFlags struct {
	title       string
	artist      string
	category    string
	description string
}

func (f *trackFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "track title")
	cmd.Flags().StringVarP(&f.artist, "artist", "a", "", "track artist")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category: "+categoryNames())
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "track description")
}

// options преобразует флаги в параметры импорта
func (f *trackFlags) options() (importer.Options, error) {
	opts := importer.Options{
		Title:       f.title,
		Artist:      f.artist,
		Description: f.description,
	}
	if f.category != "" {
		category, err := data.ParseCategory(f.category)
		if err != nil {
			return opts, err
		}
		opts.Category = category
	}
	return opts, nil
}

// createAddCommand создает команду add с привязкой к экземпляру приложения
func (app *Application) createAddCommand(ctx context.Context) *cobra.Command {
	var flags trackFlags

	cmd := &cobra.Command{
		Use:   "add [file path or URL]",
		Short: "Add an audio file to the library",
		Long: `Add an mp3, wav, ogg or webm file from a local path or URL to the library.
Empty fields are filled from the file tags and the file name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			// Создаем контекст с таймаутом для загрузки (10 минут)
			addCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			return app.addTrack(addCtx, args[0], opts)
		},
	}
	flags.register(cmd)
	return cmd
}

func (app *Application) addTrack(ctx context.Context, source string, opts importer.Options) error {
	if err := app.load(ctx); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "📥 Добавляем трек: %s\n", source)

	startTime := time.Now()
	opts.OnProgress = func(read int64) {
		elapsed := time.Since(startTime).Seconds()
		if elapsed <= 0 {
			return
		}
		fmt.Fprintf(app.out, "\r📊 Прочитано: %s | Скорость: %s/s",
			utils.FormatFileSize(read),
			utils.FormatFileSize(int64(float64(read)/elapsed)))
	}

	var (
		created *data.Track
		err     error
	)
	if isURL(source) {
		created, err = app.Importer.ImportURL(ctx, source, opts)
	} else {
		created, err = app.Importer.ImportFile(ctx, source, opts)
	}
	fmt.Fprintln(app.out)
	if err != nil {
		return fmt.Errorf("ошибка добавления трека: %w", err)
	}

	fmt.Fprintf(app.out, "✅ Трек добавлен в библиотеку!\n")
	printTrack(app.out, created.Metadata())
	return nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func categoryNames() string {
	names := make([]string, 0, len(data.Categories()))
	for _, c := range data.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
