package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/track"
)

// errNothingToUpdate возвращается, если не задан ни один флаг edit
var errNothingToUpdate = errors.New("нечего изменять: укажите хотя бы один флаг")

// createEditCommand создает команду edit
func (app *Application) createEditCommand(ctx context.Context) *cobra.Command {
	var (
		flags    trackFlags
		filePath string
	)

	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Edit track metadata or replace its audio",
		Long: `Change the title, artist, category or description of a track.
Pass an empty description to clear it. --file replaces the audio and recomputes the duration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := app.updateInput(cmd, &flags, filePath)
			if err != nil {
				return err
			}
			return app.editTrack(ctx, args[0], in)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "replace the audio with this file")
	return cmd
}

// updateInput собирает изменения только из явно заданных флагов
func (app *Application) updateInput(cmd *cobra.Command, flags *trackFlags, filePath string) (track.UpdateInput, error) {
	var in track.UpdateInput
	changed := cmd.Flags().Changed

	if changed("title") {
		in.Title = &flags.title
	}
	if changed("artist") {
		in.Artist = &flags.artist
	}
	if changed("description") {
		in.Description = &flags.description
	}
	if changed("category") {
		category, err := data.ParseCategory(flags.category)
		if err != nil {
			return in, err
		}
		in.Category = &category
	}
	if changed("file") {
		file, err := app.Importer.ReadFile(filePath, nil)
		if err != nil {
			return in, err
		}
		in.File = file
	}

	if in.Title == nil && in.Artist == nil && in.Description == nil && in.Category == nil && in.File == nil {
		return in, errNothingToUpdate
	}
	return in, nil
}

func (app *Application) editTrack(ctx context.Context, id string, in track.UpdateInput) error {
	if err := app.load(ctx); err != nil {
		return err
	}

	if err := app.Catalog.Update(ctx, id, in); err != nil {
		return fmt.Errorf("ошибка обновления трека: %w", err)
	}

	updated, _ := app.Catalog.TrackByID(id)
	fmt.Fprintln(app.out, "✅ Трек обновлен")
	printTrack(app.out, updated)
	return nil
}
