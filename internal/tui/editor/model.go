// Package editor содержит модель экрана редактирования метаданных трека для TUI
package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/track"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Margin(1, 0)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(15)
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	blurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Margin(1, 0)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Margin(1, 0)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
)

// Catalog - операция каталога, через которую сохраняются изменения
type Catalog interface {
	Update(ctx context.Context, id string, in track.UpdateInput) error
}

// TrackSavedMsg отправляется когда трек успешно сохранен
type TrackSavedMsg struct{}

// GoBackMsg отправляется при отмене редактирования
type GoBackMsg struct{}

// saveFailedMsg содержит ошибку сохранения
type saveFailedMsg struct {
	err error
}

// fieldType определяет тип поля для редактирования
type fieldType int

const (
	titleField fieldType = iota
	artistField
	descriptionField
	categoryField
	numFields
)

// Model представляет модель экрана редактирования трека
type Model struct {
	ctx           context.Context
	catalog       Catalog
	originalTrack data.TrackMetadata
	inputs        []textinput.Model
	focusIndex    int
	saving        bool
	err           string
	success       string
}

// NewModel создает новую модель редактора трека
func NewModel(ctx context.Context, catalog Catalog, trackToEdit data.TrackMetadata) *Model {
	inputs := make([]textinput.Model, numFields)

	inputs[titleField] = textinput.New()
	inputs[titleField].Placeholder = "Введите название трека"
	inputs[titleField].CharLimit = data.MaxTitleLength
	inputs[titleField].SetValue(trackToEdit.Title)
	inputs[titleField].Focus()
	inputs[titleField].PromptStyle = focusedStyle
	inputs[titleField].TextStyle = focusedStyle

	inputs[artistField] = textinput.New()
	inputs[artistField].Placeholder = "Введите исполнителя"
	inputs[artistField].CharLimit = data.MaxArtistLength
	inputs[artistField].SetValue(trackToEdit.Artist)

	inputs[descriptionField] = textinput.New()
	inputs[descriptionField].Placeholder = "Описание (необязательно)"
	inputs[descriptionField].CharLimit = data.MaxDescriptionLength
	inputs[descriptionField].SetValue(trackToEdit.Description)

	inputs[categoryField] = textinput.New()
	inputs[categoryField].Placeholder = categoryHint()
	inputs[categoryField].SetValue(string(trackToEdit.Category))

	return &Model{
		ctx:           ctx,
		catalog:       catalog,
		originalTrack: trackToEdit,
		inputs:        inputs,
	}
}

// Init инициализирует модель
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update обрабатывает сообщения и обновляет модель
func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			// Отменяем редактирование
			return m, func() tea.Msg {
				return GoBackMsg{}
			}

		case "ctrl+s":
			return m, m.saveTrack()

		case "tab", "shift+tab", "enter", "up", "down":
			s := msg.String()

			// Enter на кнопке "Сохранить"
			if s == "enter" && m.focusIndex == len(m.inputs) {
				return m, m.saveTrack()
			}

			if s == "up" || s == "shift+tab" {
				m.focusIndex--
			} else {
				m.focusIndex++
			}

			if m.focusIndex > len(m.inputs) {
				m.focusIndex = 0
			} else if m.focusIndex < 0 {
				m.focusIndex = len(m.inputs)
			}

			return m, m.updateFocus()
		}

	case TrackSavedMsg:
		m.saving = false
		m.err = ""
		m.success = "Трек успешно сохранен!"
		// Возвращаемся к списку треков через небольшую задержку
		return m, tea.Tick(time.Second, func(time.Time) tea.Msg {
			return GoBackMsg{}
		})

	case saveFailedMsg:
		m.saving = false
		m.success = ""
		m.err = msg.err.Error()
		return m, nil

	case tea.WindowSizeMsg:
		for i := range m.inputs {
			m.inputs[i].Width = msg.Width - 20
		}
		return m, nil
	}

	// Обновляем активное поле ввода
	if m.focusIndex < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) updateFocus() tea.Cmd {
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := 0; i < len(m.inputs); i++ {
		if i == m.focusIndex {
			cmds[i] = m.inputs[i].Focus()
			m.inputs[i].PromptStyle = focusedStyle
			m.inputs[i].TextStyle = focusedStyle
			continue
		}
		m.inputs[i].Blur()
		m.inputs[i].PromptStyle = blurredStyle
		m.inputs[i].TextStyle = blurredStyle
	}
	return tea.Batch(cmds...)
}

// Input возвращает изменения относительно исходного трека
func (m *Model) Input() track.UpdateInput {
	var in track.UpdateInput

	title := strings.TrimSpace(m.inputs[titleField].Value())
	if title != m.originalTrack.Title {
		in.Title = &title
	}
	artist := strings.TrimSpace(m.inputs[artistField].Value())
	if artist != m.originalTrack.Artist {
		in.Artist = &artist
	}
	description := strings.TrimSpace(m.inputs[descriptionField].Value())
	if description != m.originalTrack.Description {
		in.Description = &description
	}
	category := data.Category(strings.ToLower(strings.TrimSpace(m.inputs[categoryField].Value())))
	if category != m.originalTrack.Category {
		in.Category = &category
	}
	return in
}

// saveTrack сохраняет изменения трека; проверку полей выполняет каталог
func (m *Model) saveTrack() tea.Cmd {
	if m.saving {
		return nil
	}
	m.saving = true
	in := m.Input()
	id := m.originalTrack.ID

	return func() tea.Msg {
		if err := m.catalog.Update(m.ctx, id, in); err != nil {
			return saveFailedMsg{err: err}
		}
		return TrackSavedMsg{}
	}
}

// View отображает модель
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Редактирование трека %s", m.originalTrack.ID)))
	b.WriteString("\n\n")

	labels := []string{"Название:", "Исполнитель:", "Описание:", "Категория:"}
	for i, input := range m.inputs {
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString(" ")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	saveButton := "[ Сохранить ]"
	if m.focusIndex == len(m.inputs) {
		saveButton = focusedStyle.Render(saveButton)
	} else {
		saveButton = blurredStyle.Render(saveButton)
	}
	b.WriteString(saveButton)
	b.WriteString("\n\n")

	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err))
		b.WriteString("\n")
	}
	if m.success != "" {
		b.WriteString(successStyle.Render(m.success))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("Tab/Enter: следующее поле • Shift+Tab: предыдущее поле"))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("Ctrl+S: сохранить • Esc: отмена"))

	return b.String()
}

func categoryHint() string {
	names := make([]string, 0, len(data.Categories()))
	for _, c := range data.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
