// Package tracklist содержит модель экрана списка треков для TUI
package tracklist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/track"
	"github.com/hazadus/go-audiolib/internal/utils"
)

var (
	titleStyle        = lipgloss.NewStyle().MarginLeft(2)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(4)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("170"))
	paginationStyle   = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle         = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
	statusStyle       = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.Color("241"))
	errorStyle        = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.Color("196"))
	quitTextStyle     = lipgloss.NewStyle().Margin(1, 0, 2, 4)
)

// Catalog - операции каталога, нужные экрану списка
type Catalog interface {
	Search(query string) []data.TrackMetadata
	Categories() []data.Category
}

// StateMsg доставляет новый снимок каталога
type StateMsg struct {
	State track.State
}

// TrackSelectedMsg отправляется при выборе трека для воспроизведения
type TrackSelectedMsg struct {
	Track data.TrackMetadata
}

// TrackEditMsg отправляется при выборе трека для редактирования
type TrackEditMsg struct {
	Track data.TrackMetadata
}

// TrackDeleteMsg отправляется после подтверждения удаления трека
type TrackDeleteMsg struct {
	Track data.TrackMetadata
}

// trackItem реализует интерфейс list.Item для трека
type trackItem struct {
	track data.TrackMetadata
}

func (i trackItem) FilterValue() string {
	return fmt.Sprintf("%s %s", i.track.Artist, i.track.Title)
}

// trackItemDelegate реализует отображение элементов списка
type trackItemDelegate struct{}

func (d trackItemDelegate) Height() int                             { return 1 }
func (d trackItemDelegate) Spacing() int                            { return 0 }
func (d trackItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d trackItemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(trackItem)
	if !ok {
		return
	}

	// Исполнитель | Название | Категория | Продолжительность
	str := fmt.Sprintf("%-20s %-40s %-11s %s",
		utils.TruncateString(i.track.Artist, 20),
		utils.TruncateString(i.track.Title, 40),
		i.track.Category,
		utils.FormatClock(secondsToDuration(i.track.Duration)))

	fn := itemStyle.Render
	if index == m.Index() {
		fn = func(s ...string) string {
			return selectedItemStyle.Render("> " + strings.Join(s, " "))
		}
	}

	fmt.Fprint(w, fn(str))
}

// Model представляет модель экрана списка треков
type Model struct {
	list          list.Model
	search        textinput.Model
	catalog       Catalog
	category      data.Category // Пустая категория - все треки
	state         track.State
	pendingDelete *data.TrackMetadata
	quitting      bool
}

// NewModel создает новую модель списка треков
func NewModel(catalog Catalog) *Model {
	// Создаем список
	l := list.New(nil, trackItemDelegate{}, 0, 0)
	l.Title = "Треки"
	l.SetShowStatusBar(false)
	l.SetShowTitle(true)
	l.SetFilteringEnabled(false) // Поиск выполняет каталог
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle

	search := textinput.New()
	search.Prompt = "Поиск: "
	search.Placeholder = "исполнитель или название"
	search.CharLimit = data.MaxTitleLength

	m := &Model{
		list:    l,
		search:  search,
		catalog: catalog,
	}
	m.RefreshData()
	return m
}

// Init инициализирует модель
func (m *Model) Init() tea.Cmd {
	return nil
}

// RefreshData перестраивает список по строке поиска и выбранной категории
func (m *Model) RefreshData() {
	tracks := m.catalog.Search(m.search.Value())

	items := make([]list.Item, 0, len(tracks))
	for _, t := range tracks {
		if m.category != "" && t.Category != m.category {
			continue
		}
		items = append(items, trackItem{track: t})
	}

	m.list.SetItems(items)
	m.updateTitle()
}

// Category возвращает выбранную категорию фильтра
func (m *Model) Category() data.Category {
	return m.category
}

// Update обрабатывает сообщения и обновляет модель
func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 6) // Оставляем место для поиска и справки
		m.search.Width = msg.Width - 20
		return m, nil

	case StateMsg:
		m.state = msg.State
		m.RefreshData()
		return m, nil

	case tea.KeyMsg:
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		if m.pendingDelete != nil {
			return m.confirmDelete(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "/":
			return m, m.search.Focus()

		case "c":
			m.cycleCategory()
			return m, nil

		case "enter":
			if item, ok := m.selected(); ok {
				return m, func() tea.Msg {
					return TrackSelectedMsg{Track: item.track}
				}
			}
			return m, nil

		case "e":
			if item, ok := m.selected(); ok {
				return m, func() tea.Msg {
					return TrackEditMsg{Track: item.track}
				}
			}
			return m, nil

		case "d":
			if item, ok := m.selected(); ok {
				t := item.track
				m.pendingDelete = &t
			}
			return m, nil
		}
	}

	// Обновляем список
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) updateSearch(msg tea.KeyMsg) (*Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.RefreshData()
	return m, cmd
}

func (m *Model) confirmDelete(msg tea.KeyMsg) (*Model, tea.Cmd) {
	target := *m.pendingDelete
	m.pendingDelete = nil

	if msg.String() != "y" {
		return m, nil
	}
	return m, func() tea.Msg {
		return TrackDeleteMsg{Track: target}
	}
}

// cycleCategory переключает фильтр: все, затем категории, встречающиеся в каталоге
func (m *Model) cycleCategory() {
	options := append([]data.Category{""}, m.catalog.Categories()...)

	next := 0
	for i, c := range options {
		if c == m.category {
			next = (i + 1) % len(options)
			break
		}
	}
	m.category = options[next]
	m.RefreshData()
}

func (m *Model) selected() (trackItem, bool) {
	item, ok := m.list.SelectedItem().(trackItem)
	return item, ok
}

func (m *Model) updateTitle() {
	category := "все"
	if m.category != "" {
		category = string(m.category)
	}
	m.list.Title = fmt.Sprintf("Треки (%d) • категория: %s", len(m.list.Items()), category)
}

// View отображает модель
func (m *Model) View() string {
	if m.quitting {
		return quitTextStyle.Render("До свидания!")
	}

	var b strings.Builder
	b.WriteString(statusStyle.Render(m.search.View()))
	b.WriteString("\n")
	b.WriteString(m.list.View())
	b.WriteString("\n")

	switch {
	case m.pendingDelete != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Удалить %s - %s? (y/n)", m.pendingDelete.Artist, m.pendingDelete.Title)))
		b.WriteString("\n")
	case m.state.LoadingState == track.LoadingLoading:
		b.WriteString(statusStyle.Render("Загрузка..."))
		b.WriteString("\n")
	case m.state.LoadingState == track.LoadingError:
		b.WriteString(errorStyle.Render("Ошибка: " + m.state.Error))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("Enter: воспроизвести • e: редактировать • d: удалить • /: поиск • c: категория • q: выход"))
	return b.String()
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
