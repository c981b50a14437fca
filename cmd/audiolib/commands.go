package main

import (
	"context"

	"github.com/spf13/cobra"
)

// createRootCommand создает корневую команду с настроенными подкомандами
func (app *Application) createRootCommand(ctx context.Context) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:          "audiolib",
		Short:        "A personal audio library in your terminal",
		Long:         `Manage a local library of audio tracks: import, edit, search, play and back up.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := app.setupLogging(verbose); err != nil {
				return err
			}
			app.open()
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print log messages to stderr")

	// Добавляем команды, передавая в них экземпляр приложения и контекст
	rootCmd.AddCommand(app.createAddCommand(ctx))
	rootCmd.AddCommand(app.createListCommand(ctx))
	rootCmd.AddCommand(app.createShowCommand(ctx))
	rootCmd.AddCommand(app.createEditCommand(ctx))
	rootCmd.AddCommand(app.createDeleteCommand(ctx))
	rootCmd.AddCommand(app.createCategoriesCommand(ctx))
	rootCmd.AddCommand(app.createClearCommand(ctx))
	rootCmd.AddCommand(app.createPlayCommand(ctx))
	rootCmd.AddCommand(app.createWatchCommand(ctx))
	rootCmd.AddCommand(app.createDownloadCommand(ctx))
	rootCmd.AddCommand(app.createBackupCommand(ctx))
	rootCmd.AddCommand(app.createTUICommand(ctx))

	return rootCmd
}
