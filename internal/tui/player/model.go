// Package player содержит модель экрана воспроизведения для TUI
package player

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/player"
	"github.com/hazadus/go-audiolib/internal/utils"
)

// Шаги перемотки и громкости
const (
	seekStep   = 5 * time.Second
	volumeStep = 0.1
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0000ff")).
			MarginBottom(1)

	trackInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1).
			MarginBottom(1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff0000")).
			Bold(true)
)

// Source выдает аудиоданные трека
type Source interface {
	Blob(ctx context.Context, id string) (*data.Blob, error)
}

// Controller - управление плеером
type Controller interface {
	Load(track player.TrackInfo, payload []byte, mimeType string) error
	Play() error
	Pause()
	Stop()
	Seek(position time.Duration)
	SetVolume(level float64)
	Status() player.Status
}

// GoBackMsg отправляется для возврата к списку треков
type GoBackMsg struct{}

// StatusMsg доставляет новый снимок состояния плеера
type StatusMsg struct {
	Status player.Status
}

// PlaybackErrorMsg отправляется при ошибке воспроизведения
type PlaybackErrorMsg struct {
	Error error
}

// Model представляет модель экрана воспроизведения
type Model struct {
	ctx         context.Context
	track       data.TrackMetadata
	source      Source
	player      Controller
	progressBar progress.Model
	status      player.Status
	error       error
	width       int
	height      int
}

// NewModel создает новую модель плеера для трека
func NewModel(ctx context.Context, track data.TrackMetadata, source Source, ctrl Controller) *Model {
	// Создаем прогресс-бар
	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	return &Model{
		ctx:         ctx,
		track:       track,
		source:      source,
		player:      ctrl,
		progressBar: prog,
		status:      ctrl.Status(),
	}
}

// Init загружает трек и запускает воспроизведение
func (m *Model) Init() tea.Cmd {
	return m.startPlayback()
}

// Update обрабатывает сообщения и обновляет модель
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Обновляем ширину прогресс-бара
		m.progressBar.Width = min(60, msg.Width-10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StatusMsg:
		if !m.ownsStatus(msg.Status) {
			return m, nil
		}
		m.status = msg.Status

		var percent float64
		if msg.Status.Duration > 0 {
			percent = float64(msg.Status.Position) / float64(msg.Status.Duration)
		}
		return m, m.progressBar.SetPercent(percent)

	case PlaybackErrorMsg:
		m.error = msg.Error
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progressBar.Update(msg)
		m.progressBar = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		// Останавливаем плеер и возвращаемся к списку треков
		m.player.Stop()
		return m, func() tea.Msg {
			return GoBackMsg{}
		}

	case " ":
		// Пауза/воспроизведение
		if m.player.Status().State == player.StatePlaying {
			m.player.Pause()
			return m, nil
		}
		return m, m.play()

	case "s":
		m.player.Stop()

	case "left", "h":
		m.player.Seek(m.player.Status().Position - seekStep)

	case "right", "l":
		m.player.Seek(m.player.Status().Position + seekStep)

	case "+", "=":
		m.player.SetVolume(m.player.Status().Volume + volumeStep)

	case "-":
		m.player.SetVolume(m.player.Status().Volume - volumeStep)
	}
	return m, nil
}

// View отображает модель
func (m *Model) View() string {
	if m.error != nil {
		return fmt.Sprintf(
			"%s\n\n%s\n\n%s",
			titleStyle.Render("❌ Ошибка воспроизведения"),
			errorStyle.Render(m.error.Error()),
			controlsStyle.Render("Нажмите 'q' или 'esc' для возврата"),
		)
	}

	title := titleStyle.Render("🎵 Воспроизведение")

	trackInfo := trackInfoStyle.Render(fmt.Sprintf(
		"🎤 %s\n🎵 %s\n🏷  %s",
		m.track.Artist,
		m.track.Title,
		m.track.Category,
	))

	statusText := statusStyle.Render(fmt.Sprintf("%s  🔊 %d%%",
		formatStatus(m.status),
		int(m.status.Volume*100+0.5),
	))

	duration := m.status.Duration
	if duration == 0 {
		duration = time.Duration(m.track.Duration) * time.Second
	}
	timeText := fmt.Sprintf(
		"%s / %s",
		utils.FormatClock(m.status.Position),
		utils.FormatClock(duration),
	)

	controls := controlsStyle.Render(
		"Пробел: пауза/воспроизведение • s: стоп • ←/→: перемотка • +/-: громкость • q/esc: назад",
	)

	return fmt.Sprintf(
		"%s\n\n%s\n\n%s\n\n%s\n%s\n\n%s",
		title,
		trackInfo,
		statusText,
		m.progressBar.View(),
		timeText,
		controls,
	)
}

// startPlayback читает аудио трека, загружает его в плеер и запускает воспроизведение
func (m *Model) startPlayback() tea.Cmd {
	return func() tea.Msg {
		blob, err := m.source.Blob(m.ctx, m.track.ID)
		if err != nil {
			return PlaybackErrorMsg{Error: fmt.Errorf("ошибка чтения аудио: %w", err)}
		}

		info := player.TrackInfo{ID: m.track.ID, Title: m.track.Title, Artist: m.track.Artist}
		if err := m.player.Load(info, blob.Data, blob.MimeType); err != nil {
			return PlaybackErrorMsg{Error: err}
		}
		if err := m.player.Play(); err != nil {
			return PlaybackErrorMsg{Error: err}
		}
		return nil
	}
}

func (m *Model) play() tea.Cmd {
	return func() tea.Msg {
		if err := m.player.Play(); err != nil {
			return PlaybackErrorMsg{Error: err}
		}
		return nil
	}
}

// ownsStatus сообщает, относится ли снимок к треку этого экрана
func (m *Model) ownsStatus(status player.Status) bool {
	return status.Track == nil || status.Track.ID == m.track.ID
}

func formatStatus(status player.Status) string {
	if status.Loading {
		return "⏳ Загрузка"
	}
	switch status.State {
	case player.StatePlaying:
		return "▶️ Воспроизведение"
	case player.StatePaused:
		return "⏸️ Пауза"
	case player.StateBuffering:
		return "⏳ Буферизация"
	default:
		return "⏹️ Остановлено"
	}
}
