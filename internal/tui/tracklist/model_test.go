package tracklist

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/track"
)

// staticCatalog - каталог с фиксированным набором треков
type staticCatalog struct {
	tracks []data.TrackMetadata
}

func (c *staticCatalog) Search(query string) []data.TrackMetadata {
	query = strings.ToLower(query)
	var result []data.TrackMetadata
	for _, t := range c.tracks {
		if strings.Contains(strings.ToLower(t.Title), query) || strings.Contains(strings.ToLower(t.Artist), query) {
			result = append(result, t)
		}
	}
	return result
}

func (c *staticCatalog) Categories() []data.Category {
	return []data.Category{data.CategoryJazz, data.CategoryRock}
}

func testCatalog() *staticCatalog {
	return &staticCatalog{tracks: []data.TrackMetadata{
		{ID: "a", Artist: "Miles Davis", Title: "So What", Category: data.CategoryJazz, Duration: 545},
		{ID: "b", Artist: "Queen", Title: "Bohemian Rhapsody", Category: data.CategoryRock, Duration: 354},
		{ID: "c", Artist: "Chet Baker", Title: "Almost Blue", Category: data.CategoryJazz, Duration: 260},
	}}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	model := NewModel(testCatalog())

	if model == nil {
		t.Fatal("NewModel вернул nil")
	}
	if len(model.list.Items()) != 3 {
		t.Fatalf("Ожидалось 3 элемента, получено %d", len(model.list.Items()))
	}
}

func TestSearchInput(t *testing.T) {
	model := NewModel(testCatalog())

	model, _ = model.Update(keyRunes("/"))
	if !model.search.Focused() {
		t.Fatal("Ожидался фокус на поле поиска")
	}

	for _, r := range "queen" {
		model, _ = model.Update(keyRunes(string(r)))
	}
	if len(model.list.Items()) != 1 {
		t.Fatalf("Ожидался 1 найденный трек, получено %d", len(model.list.Items()))
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if model.search.Focused() {
		t.Error("Enter должен завершать ввод поиска")
	}
}

func TestCycleCategory(t *testing.T) {
	model := NewModel(testCatalog())

	model, _ = model.Update(keyRunes("c"))
	if model.Category() != data.CategoryJazz || len(model.list.Items()) != 2 {
		t.Errorf("Ожидалась категория jazz с 2 треками, получено %s и %d", model.Category(), len(model.list.Items()))
	}

	model, _ = model.Update(keyRunes("c"))
	if model.Category() != data.CategoryRock || len(model.list.Items()) != 1 {
		t.Errorf("Ожидалась категория rock с 1 треком, получено %s и %d", model.Category(), len(model.list.Items()))
	}

	model, _ = model.Update(keyRunes("c"))
	if model.Category() != "" || len(model.list.Items()) != 3 {
		t.Errorf("Ожидался возврат ко всем трекам, получено %s и %d", model.Category(), len(model.list.Items()))
	}
}

func TestSelectTrack(t *testing.T) {
	model := NewModel(testCatalog())

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Ожидалась команда выбора трека")
	}
	msg, ok := cmd().(TrackSelectedMsg)
	if !ok || msg.Track.ID != "a" {
		t.Errorf("Ожидался выбор трека a, получено %+v", msg)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	model := NewModel(testCatalog())

	model, cmd := model.Update(keyRunes("d"))
	if cmd != nil || model.pendingDelete == nil {
		t.Fatal("Удаление должно ожидать подтверждения")
	}
	if !strings.Contains(model.View(), "Удалить Miles Davis - So What?") {
		t.Errorf("Ожидался запрос подтверждения: %s", model.View())
	}

	model, cmd = model.Update(keyRunes("n"))
	if cmd != nil || model.pendingDelete != nil {
		t.Error("Отказ не должен удалять трек")
	}

	model, _ = model.Update(keyRunes("d"))
	_, cmd = model.Update(keyRunes("y"))
	if cmd == nil {
		t.Fatal("Ожидалась команда удаления")
	}
	if msg, ok := cmd().(TrackDeleteMsg); !ok || msg.Track.ID != "a" {
		t.Errorf("Ожидалось удаление трека a, получено %+v", msg)
	}
}

func TestStateMsgShowsError(t *testing.T) {
	catalog := testCatalog()
	model := NewModel(catalog)

	catalog.tracks = catalog.tracks[:1]
	model, _ = model.Update(StateMsg{State: track.State{
		LoadingState: track.LoadingError,
		Error:        "хранилище недоступно",
	}})

	if len(model.list.Items()) != 1 {
		t.Errorf("Ожидалось обновление списка, получено %d элементов", len(model.list.Items()))
	}
	if !strings.Contains(model.View(), "Ошибка: хранилище недоступно") {
		t.Errorf("Ожидалось сообщение об ошибке: %s", model.View())
	}
}
