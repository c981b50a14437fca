package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/player"
	"github.com/hazadus/go-audiolib/internal/utils"
)

// createPlayCommand создает команду play с привязкой к экземпляру приложения
func (app *Application) createPlayCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "play [id]",
		Short: "Play a track by its ID",
		Long:  `Play a track from the library until it ends or Ctrl+C is pressed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.playByID(ctx, args[0])
		},
	}
}

// enableRawMode включает режим raw для терминала (без буферизации и echo)
func enableRawMode() {
	cmd := exec.Command("stty", "-echo", "-icanon")
	cmd.Stdin = os.Stdin
	_ = cmd.Run() // Без raw-режима пробел просто потребует Enter
}

// disableRawMode восстанавливает нормальный режим терминала
func disableRawMode() {
	cmd := exec.Command("stty", "echo", "icanon")
	cmd.Stdin = os.Stdin
	_ = cmd.Run()
}

func (app *Application) playByID(ctx context.Context, id string) error {
	t, err := app.findTrack(ctx, id)
	if err != nil {
		return err
	}

	blob, err := app.Catalog.Blob(ctx, id)
	if err != nil {
		return fmt.Errorf("ошибка чтения аудио: %w", err)
	}

	fmt.Fprintf(app.out, "🎵 Сейчас играет:\n")
	printTrack(app.out, t)
	fmt.Fprintln(app.out)

	// Подписчик вызывается под блокировкой плеера, поэтому храним только последний снимок
	updates := make(chan player.Status, 1)
	unsubscribe := app.Player.Subscribe(func(s player.Status) {
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	defer unsubscribe()

	info := player.TrackInfo{ID: t.ID, Title: t.Title, Artist: t.Artist}
	if err := app.Player.Load(info, blob.Data, blob.MimeType); err != nil {
		return fmt.Errorf("ошибка загрузки трека: %w", err)
	}
	if err := app.Player.Play(); err != nil {
		return fmt.Errorf("ошибка запуска воспроизведения: %w", err)
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintf(app.out, "🎮 Управление:\n")
		fmt.Fprintf(app.out, "   [Пробел] - пауза/воспроизведение\n")
		fmt.Fprintf(app.out, "   [Ctrl+C] - остановить и выйти\n")
		fmt.Fprintln(app.out)

		enableRawMode()
		defer disableRawMode()
		go app.readKeys()
	}

	for {
		select {
		case status := <-updates:
			if status.State == player.StateStopped {
				fmt.Fprintln(app.out, "\n✅ Воспроизведение завершено")
				return nil
			}
			displayProgress(app, status)
		case <-ctx.Done():
			app.Player.Stop()
			fmt.Fprintln(app.out, "\n⏹️  Воспроизведение остановлено пользователем")
			return nil
		}
	}
}

// readKeys переключает паузу по пробелу или Enter
func (app *Application) readKeys() {
	buffer := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buffer); err != nil {
			return
		}
		switch buffer[0] {
		case ' ', '\n', '\r':
			if app.Player.Status().State == player.StatePlaying {
				app.Player.Pause()
			} else if err := app.Player.Play(); err != nil {
				return
			}
		}
	}
}

// displayProgress отображает прогресс воспроизведения
func displayProgress(app *Application, status player.Status) {
	icon := "▶️ "
	switch status.State {
	case player.StatePaused:
		icon = "⏸️ "
	case player.StateBuffering:
		icon = "⏳"
	}

	total := "--:--"
	progress := "??%"
	if status.Duration > 0 {
		total = utils.FormatClock(status.Duration)
		progress = fmt.Sprintf("%.1f%%", float64(status.Position)/float64(status.Duration)*100)
	}

	fmt.Fprintf(app.out, "\r\033[K%s %s | %s / %s | Громкость: %d%%",
		icon,
		progress,
		utils.FormatClock(status.Position),
		total,
		int(status.Volume*100+0.5))
}
