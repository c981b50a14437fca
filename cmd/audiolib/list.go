package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/utils"
)

// createListCommand создает команду list с привязкой к экземпляру приложения
func (app *Application) createListCommand(ctx context.Context) *cobra.Command {
	var search, category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracks from the library",
		Long:  `Display tracks, newest first. Filter by a search query and/or a category.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var filter data.Category
			if category != "" {
				parsed, err := data.ParseCategory(category)
				if err != nil {
					return err
				}
				filter = parsed
			}
			return app.listTracks(ctx, search, filter)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "search in titles and artists")
	cmd.Flags().StringVarP(&category, "category", "c", "", "show only one category")
	return cmd
}

func (app *Application) listTracks(ctx context.Context, search string, category data.Category) error {
	if err := app.load(ctx); err != nil {
		return err
	}

	if len(app.Catalog.ListTracks()) == 0 {
		fmt.Fprintln(app.out, "📚 Библиотека пуста. Добавьте треки с помощью команды 'add'.")
		return nil
	}

	tracks := app.filterTracks(search, category)
	if len(tracks) == 0 {
		fmt.Fprintln(app.out, "🔍 Ничего не найдено")
		return nil
	}

	fmt.Fprintf(app.out, "📚 Найдено треков: %d\n\n", len(tracks))

	fmt.Fprintf(app.out, "%-22s %-28s %-30s %-11s %-9s\n",
		"ID", "Исполнитель", "Название", "Категория", "Время")
	fmt.Fprintln(app.out, strings.Repeat("-", 104))

	for _, t := range tracks {
		duration := "N/A"
		if t.Duration > 0 {
			duration = utils.FormatClock(time.Duration(t.Duration) * time.Second)
		}

		fmt.Fprintf(app.out, "%-22s %-28s %-30s %-11s %-9s\n",
			t.ID,
			utils.TruncateString(t.Artist, 26),
			utils.TruncateString(t.Title, 28),
			t.Category,
			duration)
	}

	fmt.Fprintln(app.out)
	fmt.Fprintln(app.out, "💡 Используйте 'audiolib play [ID]' для воспроизведения трека")
	return nil
}

// filterTracks применяет поиск и фильтр по категории
func (app *Application) filterTracks(search string, category data.Category) []data.TrackMetadata {
	if strings.TrimSpace(search) == "" {
		return app.Catalog.FilterByCategory(category)
	}

	found := app.Catalog.Search(search)
	if category == "" {
		return found
	}

	var result []data.TrackMetadata
	for _, t := range found {
		if t.Category == category {
			result = append(result, t)
		}
	}
	return result
}

// createShowCommand создает команду show
func (app *Application) createShowCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show track details",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := app.findTrack(ctx, args[0])
			if err != nil {
				return err
			}
			printTrack(app.out, t)
			return nil
		},
	}
}

// findTrack загружает каталог и ищет в нем трек
func (app *Application) findTrack(ctx context.Context, id string) (data.TrackMetadata, error) {
	if err := app.load(ctx); err != nil {
		return data.TrackMetadata{}, err
	}
	t, ok := app.Catalog.TrackByID(id)
	if !ok {
		return data.TrackMetadata{}, fmt.Errorf("трек %s: %w", id, data.ErrNotFound)
	}
	return t, nil
}

// createCategoriesCommand создает команду categories
func (app *Application) createCategoriesCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories used in the library",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := app.load(ctx); err != nil {
				return err
			}

			categories := app.Catalog.Categories()
			if len(categories) == 0 {
				fmt.Fprintln(app.out, "📚 Библиотека пуста")
				return nil
			}
			for _, c := range categories {
				fmt.Fprintf(app.out, "%-11s %d\n", c, len(app.Catalog.FilterByCategory(c)))
			}
			return nil
		},
	}
}

// printTrack выводит сведения о треке
func printTrack(w io.Writer, t data.TrackMetadata) {
	fmt.Fprintf(w, "   ID: %s\n", t.ID)
	fmt.Fprintf(w, "   Исполнитель: %s\n", t.Artist)
	fmt.Fprintf(w, "   Название: %s\n", t.Title)
	fmt.Fprintf(w, "   Категория: %s\n", t.Category)
	if t.Description != "" {
		fmt.Fprintf(w, "   Описание: %s\n", t.Description)
	}
	if t.Duration > 0 {
		fmt.Fprintf(w, "   Продолжительность: %s\n", utils.FormatDurationFromSeconds(t.Duration))
	}
	if t.HasCover {
		fmt.Fprintf(w, "   Обложка: есть\n")
	}
	fmt.Fprintf(w, "   Добавлен: %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
}
