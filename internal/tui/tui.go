// Package tui содержит компоненты для текстового пользовательского интерфейса
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazadus/go-audiolib/internal/tui/app"
)

// App представляет основное TUI приложение
type App struct {
	catalog app.Catalog
	player  app.Player
}

// NewApp создает новый экземпляр TUI приложения
func NewApp(catalog app.Catalog, player app.Player) *App {
	return &App{
		catalog: catalog,
		player:  player,
	}
}

// Run запускает TUI приложение и блокируется до выхода
func (tuiApp *App) Run(ctx context.Context) error {
	model := app.NewMainModel(ctx, tuiApp.catalog, tuiApp.player)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()

	// Отписываемся от каталога и плеера после завершения программы
	model.Close()

	return err
}
