// Package app содержит основную логику TUI приложения
package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/player"
	"github.com/hazadus/go-audiolib/internal/track"
	"github.com/hazadus/go-audiolib/internal/tui/editor"
	tuiPlayer "github.com/hazadus/go-audiolib/internal/tui/player"
	"github.com/hazadus/go-audiolib/internal/tui/tracklist"
)

var nowPlayingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).PaddingLeft(4)

// ScreenType определяет тип текущего экрана
type ScreenType int

// Константы для типов экранов
const (
	// TracklistScreen - экран списка треков
	TracklistScreen ScreenType = iota
	// PlayerScreen - экран плеера
	PlayerScreen
	// EditorScreen - экран редактирования
	EditorScreen
)

// Catalog - операции каталога, которые использует интерфейс
type Catalog interface {
	tracklist.Catalog
	editor.Catalog
	tuiPlayer.Source
	Subscribe(fn func(track.State)) func()
	Delete(ctx context.Context, id string) error
}

// Player - плеер, общий для всех экранов
type Player interface {
	tuiPlayer.Controller
	Subscribe(fn func(player.Status)) func()
}

// deleteFailedMsg содержит ошибку удаления трека
type deleteFailedMsg struct {
	err error
}

// MainModel представляет главную модель TUI
type MainModel struct {
	ctx            context.Context
	catalog        Catalog
	player         Player
	currentScreen  ScreenType
	tracklistModel *tracklist.Model
	playerModel    *tuiPlayer.Model
	editorModel    *editor.Model
	status         player.Status
	lastError      string

	states        *feed[track.State]
	statuses      *feed[player.Status]
	unsubscribers []func()
}

// NewMainModel создает новую главную модель
func NewMainModel(ctx context.Context, catalog Catalog, p Player) *MainModel {
	return &MainModel{
		ctx:            ctx,
		catalog:        catalog,
		player:         p,
		currentScreen:  TracklistScreen,
		tracklistModel: tracklist.NewModel(catalog),
		status:         p.Status(),
		states:         newFeed[track.State](),
		statuses:       newFeed[player.Status](),
	}
}

// Init подписывается на каталог и плеер
func (m *MainModel) Init() tea.Cmd {
	m.unsubscribers = append(m.unsubscribers,
		m.catalog.Subscribe(m.states.push),
		m.player.Subscribe(m.statuses.push),
	)

	return tea.Batch(
		m.tracklistModel.Init(),
		m.nextState(),
		m.nextStatus(),
	)
}

func (m *MainModel) nextState() tea.Cmd {
	return m.states.next(func(s track.State) tea.Msg {
		return tracklist.StateMsg{State: s}
	})
}

func (m *MainModel) nextStatus() tea.Cmd {
	return m.statuses.next(func(s player.Status) tea.Msg {
		return tuiPlayer.StatusMsg{Status: s}
	})
}

// Update обрабатывает сообщения
func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Глобальные горячие клавиши
		if msg.String() == "ctrl+c" {
			m.player.Stop()
			return m, tea.Quit
		}

	case tracklist.StateMsg:
		// Список обновляется на любом экране
		var cmd tea.Cmd
		m.tracklistModel, cmd = m.tracklistModel.Update(msg)
		return m, tea.Batch(cmd, m.nextState())

	case tuiPlayer.StatusMsg:
		m.status = msg.Status
		var cmd tea.Cmd
		if m.playerModel != nil {
			_, cmd = m.playerModel.Update(msg)
		}
		return m, tea.Batch(cmd, m.nextStatus())

	case tracklist.TrackSelectedMsg:
		m.currentScreen = PlayerScreen
		m.playerModel = tuiPlayer.NewModel(m.ctx, msg.Track, m.catalog, m.player)
		return m, m.playerModel.Init()

	case tracklist.TrackEditMsg:
		m.currentScreen = EditorScreen
		m.editorModel = editor.NewModel(m.ctx, m.catalog, msg.Track)
		return m, m.editorModel.Init()

	case tracklist.TrackDeleteMsg:
		return m, m.deleteTrack(msg.Track)

	case deleteFailedMsg:
		m.lastError = msg.err.Error()
		return m, nil

	case tuiPlayer.GoBackMsg:
		m.currentScreen = TracklistScreen
		m.playerModel = nil
		return m, nil

	case editor.GoBackMsg:
		m.currentScreen = TracklistScreen
		m.editorModel = nil
		m.tracklistModel.RefreshData()
		return m, nil
	}

	// Передаем сообщение активной модели
	var cmd tea.Cmd
	switch m.currentScreen {
	case TracklistScreen:
		m.lastError = ""
		m.tracklistModel, cmd = m.tracklistModel.Update(msg)

	case PlayerScreen:
		if m.playerModel != nil {
			_, cmd = m.playerModel.Update(msg)
		}

	case EditorScreen:
		if m.editorModel != nil {
			m.editorModel, cmd = m.editorModel.Update(msg)
		}
	}

	return m, cmd
}

// deleteTrack удаляет трек; если он загружен в плеер, плеер выгружается
func (m *MainModel) deleteTrack(t data.TrackMetadata) tea.Cmd {
	return func() tea.Msg {
		if current := m.player.Status().Track; current != nil && current.ID == t.ID {
			m.player.Stop()
		}
		if err := m.catalog.Delete(m.ctx, t.ID); err != nil {
			return deleteFailedMsg{err: fmt.Errorf("ошибка удаления трека: %w", err)}
		}
		return nil
	}
}

// View отображает интерфейс
func (m *MainModel) View() string {
	switch m.currentScreen {
	case TracklistScreen:
		view := m.tracklistModel.View()
		if line := m.nowPlaying(); line != "" {
			view += "\n" + nowPlayingStyle.Render(line)
		}
		if m.lastError != "" {
			view += "\n" + nowPlayingStyle.Render(m.lastError)
		}
		return view

	case PlayerScreen:
		if m.playerModel != nil {
			return m.playerModel.View()
		}
		return "Ошибка: модель плеера не инициализирована"

	case EditorScreen:
		if m.editorModel != nil {
			return m.editorModel.View()
		}
		return "Ошибка: модель редактора не инициализирована"

	default:
		return "Неизвестный экран"
	}
}

func (m *MainModel) nowPlaying() string {
	if m.status.Track == nil || m.status.State != player.StatePlaying {
		return ""
	}
	return fmt.Sprintf("▶ %s - %s", m.status.Track.Artist, m.status.Track.Title)
}

// Close отписывается от каталога и плеера
func (m *MainModel) Close() {
	for _, unsubscribe := range m.unsubscribers {
		unsubscribe()
	}
	m.unsubscribers = nil
	m.states.stop()
	m.statuses.stop()
}
