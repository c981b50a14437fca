package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// createDeleteCommand создает команду delete с привязкой к экземпляру приложения
func (app *Application) createDeleteCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a track by ID",
		Long:  `Delete a track and its audio from the library. Deleting a missing track does nothing.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.deleteTrack(ctx, args[0])
		},
	}
}

func (app *Application) deleteTrack(ctx context.Context, id string) error {
	if err := app.load(ctx); err != nil {
		return err
	}

	t, ok := app.Catalog.TrackByID(id)
	if !ok {
		fmt.Fprintf(app.out, "ℹ️  Трек %s не найден, удалять нечего\n", id)
		return nil
	}

	fmt.Fprintf(app.out, "🗑️  Удаляем трек: %s - %s\n", t.Artist, t.Title)
	if err := app.Catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("ошибка удаления трека: %w", err)
	}

	fmt.Fprintln(app.out, "✅ Трек удален")
	return nil
}

// errNotConfirmed возвращается командой clear без подтверждения
var errNotConfirmed = errors.New("подтвердите удаление всех треков флагом --yes")

// createClearCommand создает команду clear
func (app *Application) createClearCommand(ctx context.Context) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all tracks",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !confirmed {
				return errNotConfirmed
			}
			if err := app.Catalog.ClearAll(ctx); err != nil {
				return fmt.Errorf("ошибка очистки библиотеки: %w", err)
			}
			fmt.Fprintln(app.out, "🧹 Библиотека очищена")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "confirm deleting every track")
	return cmd
}
