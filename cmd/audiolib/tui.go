package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/tui"
)

// createTUICommand создает команду tui с привязкой к экземпляру приложения
func (app *Application) createTUICommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch TUI (Terminal User Interface)",
		Long:  `Launch interactive terminal user interface for browsing, editing and playing tracks.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := app.load(ctx); err != nil {
				return err
			}
			if err := tui.NewApp(app.Catalog, app.Player).Run(ctx); err != nil {
				return fmt.Errorf("ошибка TUI: %w", err)
			}
			return nil
		},
	}
}
