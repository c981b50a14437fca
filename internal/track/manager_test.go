package track

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/metadata"
	"github.com/hazadus/go-audiolib/internal/store"
)

// memoryRepository - хранилище в памяти для тестов
type memoryRepository struct {
	mu       sync.Mutex
	metadata map[string]data.TrackMetadata
	blobs    map[string]data.Blob
	calls    int
	putErr   error
	loadErr  error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		metadata: make(map[string]data.TrackMetadata),
		blobs:    make(map[string]data.Blob),
	}
}

func (r *memoryRepository) Put(_ context.Context, track *data.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.putErr != nil {
		return r.putErr
	}
	r.metadata[track.ID] = track.TrackMetadata
	if len(track.Audio) > 0 {
		r.blobs[track.ID] = data.Blob{ID: track.ID, MimeType: track.MimeType, Data: track.Audio, Cover: track.Cover}
	}
	return nil
}

func (r *memoryRepository) AllMetadata(context.Context) ([]data.TrackMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	out := make([]data.TrackMetadata, 0, len(r.metadata))
	for _, m := range r.metadata {
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryRepository) Metadata(_ context.Context, id string) (data.TrackMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	m, ok := r.metadata[id]
	if !ok {
		return data.TrackMetadata{}, data.ErrNotFound
	}
	return m, nil
}

func (r *memoryRepository) Blob(_ context.Context, id string) (*data.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	b, ok := r.blobs[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return &b, nil
}

func (r *memoryRepository) UpdateMetadata(_ context.Context, id string, patch data.MetadataPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	m, ok := r.metadata[id]
	if !ok {
		return data.ErrNotFound
	}
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Artist != nil {
		m.Artist = *patch.Artist
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.Category != nil {
		m.Category = *patch.Category
	}
	r.metadata[id] = m
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	delete(r.metadata, id)
	delete(r.blobs, id)
	return nil
}

func (r *memoryRepository) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.metadata = make(map[string]data.TrackMetadata)
	r.blobs = make(map[string]data.Blob)
	return nil
}

func (r *memoryRepository) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeDecoder возвращает длительность по длине данных: 1 байт = 1 секунда
type fakeDecoder struct {
	err error
}

func (d fakeDecoder) DecodeDuration(payload []byte, _ string) (time.Duration, error) {
	if d.err != nil {
		return 0, d.err
	}
	return time.Duration(len(payload))*time.Second + 900*time.Millisecond, nil
}

// stepClock возвращает время, увеличивающееся на минуту при каждом вызове
func stepClock() func() time.Time {
	current := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func audioFile(payload string) *data.File {
	return &data.File{
		Name:     "song.mp3",
		MimeType: data.MimeMPEG,
		Size:     int64(len(payload)),
		Data:     []byte(payload),
	}
}

func newTestManager(repo Repository) *Manager {
	return NewManager(repo, fakeDecoder{}, WithClock(stepClock()))
}

func createTrack(t *testing.T, m *Manager, title, artist string, category data.Category) *data.Track {
	t.Helper()
	track, err := m.Create(context.Background(), CreateInput{
		Title:    title,
		Artist:   artist,
		Category: category,
		File:     audioFile("abc"),
	})
	if err != nil {
		t.Fatalf("Ошибка создания трека %q: %v", title, err)
	}
	return track
}

func TestCreateTrack(t *testing.T) {
	repo := newMemoryRepository()
	manager := newTestManager(repo)

	track, err := manager.Create(context.Background(), CreateInput{
		Title:       "  Test Title  ",
		Artist:      "Test Artist",
		Category:    data.CategoryJazz,
		Description: "Описание",
		File:        audioFile("12345"),
	})
	if err != nil {
		t.Fatalf("Ошибка создания трека: %v", err)
	}

	if track.Title != "Test Title" {
		t.Errorf("Ожидался Title: Test Title, получено: %q", track.Title)
	}
	if track.Duration != 5 {
		t.Errorf("Ожидалась длительность 5, получено %d", track.Duration)
	}
	if track.ID == "" {
		t.Error("Идентификатор не должен быть пустым")
	}

	state := manager.State()
	if state.LoadingState != LoadingSuccess {
		t.Errorf("Ожидалось состояние success, получено %s", state.LoadingState)
	}
	if len(state.Tracks) != 1 {
		t.Fatalf("Ожидался 1 трек, получено %d", len(state.Tracks))
	}

	got, ok := manager.TrackByID(track.ID)
	if !ok {
		t.Fatal("Трек не найден по идентификатору")
	}
	if got != track.Metadata() {
		t.Errorf("Метаданные не совпадают:\nожидалось %+v\nполучено  %+v", track.Metadata(), got)
	}

	blob, err := manager.Blob(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("Ошибка получения аудио: %v", err)
	}
	if string(blob.Data) != "12345" {
		t.Errorf("Неожиданные аудиоданные: %q", blob.Data)
	}
}

func TestCreatePublishesStates(t *testing.T) {
	manager := newTestManager(newMemoryRepository())

	var states []LoadingState
	unsubscribe := manager.Subscribe(func(s State) {
		states = append(states, s.LoadingState)
	})
	defer unsubscribe()

	createTrack(t, manager, "Song", "Artist", data.CategoryPop)

	expected := []LoadingState{LoadingIdle, LoadingLoading, LoadingSuccess}
	if fmt.Sprint(states) != fmt.Sprint(expected) {
		t.Errorf("Ожидалась последовательность %v, получено %v", expected, states)
	}
}

func TestCreateUniqueIDs(t *testing.T) {
	manager := NewManager(newMemoryRepository(), fakeDecoder{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		track := createTrack(t, manager, fmt.Sprintf("Song %d", i), "Artist", data.CategoryPop)
		if seen[track.ID] {
			t.Fatalf("Повторный идентификатор %s", track.ID)
		}
		seen[track.ID] = true
	}

	if len(manager.ListTracks()) != 50 {
		t.Errorf("Ожидалось 50 треков, получено %d", len(manager.ListTracks()))
	}
}

func TestCreateValidationDoesNotTouchStorage(t *testing.T) {
	longText := func(n int) string { return strings.Repeat("я", n) }

	tests := []struct {
		name     string
		input    CreateInput
		expected error
	}{
		{"пустое название", CreateInput{Title: "   ", Artist: "", Category: "bad"}, ErrTitleRequired},
		{"длинное название", CreateInput{Title: longText(51), Artist: ""}, ErrTitleTooLong},
		{"пустой исполнитель", CreateInput{Title: "T", Artist: " ", Description: longText(300)}, ErrArtistRequired},
		{"длинный исполнитель", CreateInput{Title: "T", Artist: longText(51)}, ErrArtistTooLong},
		{"длинное описание", CreateInput{Title: "T", Artist: "A", Description: longText(201), Category: "bad"}, ErrDescriptionTooLong},
		{"неизвестная категория", CreateInput{Title: "T", Artist: "A", Category: "polka", File: &data.File{Size: data.MaxFileSize + 1}}, ErrInvalidCategory},
		{"большой файл", CreateInput{Title: "T", Artist: "A", Category: data.CategoryRock, File: &data.File{MimeType: "video/mp4", Size: data.MaxFileSize + 1}}, ErrFileTooLarge},
		{"занижен заявленный размер", CreateInput{Title: "T", Artist: "A", Category: data.CategoryRock, File: &data.File{MimeType: data.MimeMPEG, Size: 100, Data: make([]byte, data.MaxFileSize+1024)}}, ErrFileTooLarge},
		{"неверный формат", CreateInput{Title: "T", Artist: "A", Category: data.CategoryRock, File: &data.File{MimeType: "video/mp4", Size: 10}}, ErrUnsupportedFormat},
		{"нет файла", CreateInput{Title: "T", Artist: "A", Category: data.CategoryRock}, ErrFileRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepository()
			manager := newTestManager(repo)

			track, err := manager.Create(context.Background(), tt.input)
			if track != nil {
				t.Error("Трек не должен создаваться")
			}
			if !errors.Is(err, tt.expected) {
				t.Errorf("Ожидалась ошибка %q, получено %v", tt.expected, err)
			}
			if repo.callCount() != 0 {
				t.Errorf("Хранилище не должно затрагиваться, вызовов: %d", repo.callCount())
			}

			state := manager.State()
			if state.LoadingState != LoadingError || state.Error != tt.expected.Error() {
				t.Errorf("Ожидалось состояние error с сообщением %q, получено %s %q",
					tt.expected.Error(), state.LoadingState, state.Error)
			}
		})
	}
}

func TestValidateBoundaries(t *testing.T) {
	fields := Fields{
		Title:       strings.Repeat("t", data.MaxTitleLength),
		Artist:      strings.Repeat("a", data.MaxArtistLength),
		Description: strings.Repeat("d", data.MaxDescriptionLength),
		Category:    data.CategoryOther,
		File:        &data.File{MimeType: "audio/ogg; codecs=vorbis", Size: data.MaxFileSize},
	}
	if err := Validate(fields); err != nil {
		t.Errorf("Граничные значения должны проходить проверку: %v", err)
	}

	for _, mime := range []string{data.MimeMPEG, data.MimeWAV, data.MimeOGG, data.MimeWebM} {
		fields.File.MimeType = mime
		if err := Validate(fields); err != nil {
			t.Errorf("Формат %s должен быть допустим: %v", mime, err)
		}
	}
}

func TestCreateFailureKeepsTracks(t *testing.T) {
	repo := newMemoryRepository()
	manager := newTestManager(repo)

	existing := createTrack(t, manager, "Existing", "Artist", data.CategoryPop)

	repo.putErr = fmt.Errorf("%w: диск переполнен", data.ErrStoreUnavailable)
	_, err := manager.Create(context.Background(), CreateInput{
		Title:    "New",
		Artist:   "Artist",
		Category: data.CategoryPop,
		File:     audioFile("abc"),
	})
	if !errors.Is(err, data.ErrStoreUnavailable) {
		t.Fatalf("Ожидалась ErrStoreUnavailable, получено %v", err)
	}

	state := manager.State()
	if state.LoadingState != LoadingError || state.Error == "" {
		t.Errorf("Ожидалось состояние error с сообщением, получено %+v", state)
	}
	if len(state.Tracks) != 1 || state.Tracks[0].ID != existing.ID {
		t.Errorf("Ранее опубликованные треки должны сохраниться: %+v", state.Tracks)
	}
}

func TestCreateDecodeFailure(t *testing.T) {
	repo := newMemoryRepository()
	manager := NewManager(repo, fakeDecoder{err: errors.New("битый файл")})

	_, err := manager.Create(context.Background(), CreateInput{
		Title:    "Song",
		Artist:   "Artist",
		Category: data.CategoryPop,
		File:     audioFile("abc"),
	})
	if !errors.Is(err, data.ErrDecode) {
		t.Errorf("Ожидалась ErrDecode, получено %v", err)
	}
	if len(repo.metadata) != 0 {
		t.Error("Трек не должен сохраняться при ошибке декодирования")
	}
}

func TestCreateWithoutDecoderForFormat(t *testing.T) {
	manager := NewManager(newMemoryRepository(), fakeDecoder{err: metadata.ErrNoDecoder})

	file := audioFile("abc")
	file.MimeType = data.MimeWebM
	track, err := manager.Create(context.Background(), CreateInput{
		Title:    "Song",
		Artist:   "Artist",
		Category: data.CategoryPop,
		File:     file,
	})
	if err != nil {
		t.Fatalf("Ошибка создания трека: %v", err)
	}
	if track.Duration != 0 {
		t.Errorf("Ожидалась нулевая длительность, получено %d", track.Duration)
	}
}

type staticCover []byte

func (c staticCover) Cover([]byte) []byte {
	return c
}

func TestCreateCover(t *testing.T) {
	manager := NewManager(newMemoryRepository(), fakeDecoder{}, WithCoverReader(staticCover("embedded")))

	track := createTrack(t, manager, "Embedded", "Artist", data.CategoryPop)
	if !track.HasCover || string(track.Cover) != "embedded" {
		t.Errorf("Ожидалась встроенная обложка, получено %q", track.Cover)
	}

	file := audioFile("abc")
	file.Cover = []byte("explicit")
	explicit, err := manager.Create(context.Background(), CreateInput{
		Title:    "Explicit",
		Artist:   "Artist",
		Category: data.CategoryPop,
		File:     file,
	})
	if err != nil {
		t.Fatalf("Ошибка создания трека: %v", err)
	}
	if string(explicit.Cover) != "explicit" {
		t.Errorf("Явная обложка должна иметь приоритет, получено %q", explicit.Cover)
	}

	plain := NewManager(newMemoryRepository(), fakeDecoder{})
	withoutCover := createTrack(t, plain, "Plain", "Artist", data.CategoryPop)
	if withoutCover.HasCover {
		t.Error("Трек без обложки не должен отмечаться флагом HasCover")
	}
}

func TestTracksOrderedNewestFirst(t *testing.T) {
	manager := newTestManager(newMemoryRepository())

	first := createTrack(t, manager, "T1", "Artist", data.CategoryPop)
	second := createTrack(t, manager, "T2", "Artist", data.CategoryPop)
	third := createTrack(t, manager, "T3", "Artist", data.CategoryPop)

	tracks := manager.ListTracks()
	expected := []string{third.ID, second.ID, first.ID}
	for i, id := range expected {
		if tracks[i].ID != id {
			t.Errorf("Позиция %d: ожидался %s, получено %s", i, id, tracks[i].ID)
		}
	}
}

func TestUpdateWithoutFile(t *testing.T) {
	repo := newMemoryRepository()
	manager := newTestManager(repo)

	track, err := manager.Create(context.Background(), CreateInput{
		Title:       "Old",
		Artist:      "Artist",
		Category:    data.CategoryPop,
		Description: "desc",
		File:        audioFile("1234"),
	})
	if err != nil {
		t.Fatalf("Ошибка создания трека: %v", err)
	}

	title := "New"
	if err := manager.Update(context.Background(), track.ID, UpdateInput{Title: &title}); err != nil {
		t.Fatalf("Ошибка обновления: %v", err)
	}

	updated, _ := manager.TrackByID(track.ID)
	if updated.Title != "New" {
		t.Errorf("Ожидался Title: New, получено %q", updated.Title)
	}
	if updated.Artist != "Artist" || updated.Description != "desc" || updated.Duration != 4 {
		t.Errorf("Незатронутые поля изменились: %+v", updated)
	}

	blob, _ := manager.Blob(context.Background(), track.ID)
	if string(blob.Data) != "1234" {
		t.Errorf("Аудио не должно меняться, получено %q", blob.Data)
	}
}

func TestUpdateClearsDescription(t *testing.T) {
	manager := newTestManager(newMemoryRepository())
	track, _ := manager.Create(context.Background(), CreateInput{
		Title:       "Song",
		Artist:      "Artist",
		Category:    data.CategoryPop,
		Description: "desc",
		File:        audioFile("1"),
	})

	empty := ""
	if err := manager.Update(context.Background(), track.ID, UpdateInput{Description: &empty}); err != nil {
		t.Fatalf("Ошибка обновления: %v", err)
	}

	updated, _ := manager.TrackByID(track.ID)
	if updated.Description != "" {
		t.Errorf("Описание должно очиститься, получено %q", updated.Description)
	}
}

func TestUpdateRejectsEmptyTitle(t *testing.T) {
	manager := newTestManager(newMemoryRepository())
	track := createTrack(t, manager, "Song", "Artist", data.CategoryPop)

	empty := " "
	err := manager.Update(context.Background(), track.ID, UpdateInput{Title: &empty})
	if !errors.Is(err, ErrTitleRequired) {
		t.Errorf("Ожидалась ErrTitleRequired, получено %v", err)
	}

	unchanged, _ := manager.TrackByID(track.ID)
	if unchanged.Title != "Song" {
		t.Errorf("Название не должно меняться, получено %q", unchanged.Title)
	}
	if manager.State().LoadingState != LoadingError {
		t.Errorf("Ожидалось состояние error, получено %s", manager.State().LoadingState)
	}
}

func TestUpdateWithFile(t *testing.T) {
	manager := newTestManager(newMemoryRepository())
	track := createTrack(t, manager, "Song", "Artist", data.CategoryPop)

	file := audioFile("1234567")
	file.MimeType = data.MimeOGG
	if err := manager.Update(context.Background(), track.ID, UpdateInput{File: file}); err != nil {
		t.Fatalf("Ошибка обновления: %v", err)
	}

	updated, _ := manager.TrackByID(track.ID)
	if updated.Duration != 7 {
		t.Errorf("Длительность должна пересчитаться, получено %d", updated.Duration)
	}
	if !updated.CreatedAt.Equal(track.CreatedAt) {
		t.Errorf("Время создания не должно меняться")
	}

	blob, _ := manager.Blob(context.Background(), track.ID)
	if string(blob.Data) != "1234567" || blob.MimeType != data.MimeOGG {
		t.Errorf("Аудио должно замениться, получено %q (%s)", blob.Data, blob.MimeType)
	}
}

func TestUpdateMissingTrack(t *testing.T) {
	manager := newTestManager(newMemoryRepository())

	title := "x"
	err := manager.Update(context.Background(), "missing", UpdateInput{Title: &title})
	if !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Ожидалась ErrNotFound, получено %v", err)
	}
	if manager.State().LoadingState != LoadingError {
		t.Errorf("Ожидалось состояние error, получено %s", manager.State().LoadingState)
	}
}

func TestDeleteTrackIsIdempotent(t *testing.T) {
	manager := newTestManager(newMemoryRepository())

	keep := createTrack(t, manager, "Keep", "Artist", data.CategoryPop)
	remove := createTrack(t, manager, "Remove", "Artist", data.CategoryPop)

	if err := manager.Delete(context.Background(), remove.ID); err != nil {
		t.Fatalf("Ошибка удаления: %v", err)
	}
	afterFirst := manager.ListTracks()

	if err := manager.Delete(context.Background(), remove.ID); err != nil {
		t.Errorf("Повторное удаление не должно возвращать ошибку: %v", err)
	}
	afterSecond := manager.ListTracks()

	if len(afterFirst) != 1 || afterFirst[0].ID != keep.ID {
		t.Errorf("Ожидался только трек %s, получено %+v", keep.ID, afterFirst)
	}
	if fmt.Sprint(afterFirst) != fmt.Sprint(afterSecond) {
		t.Error("Состояние не должно меняться между удалениями")
	}
}

func TestSearch(t *testing.T) {
	manager := newTestManager(newMemoryRepository())

	createTrack(t, manager, "Jazz Odyssey", "Spinal Tap", data.CategoryJazz)
	createTrack(t, manager, "Blue Train", "The Jazzman", data.CategoryJazz)
	createTrack(t, manager, "Thunder", "Rockers", data.CategoryRock)

	found := manager.Search("JAZ")
	if len(found) != 2 {
		t.Errorf("Ожидалось 2 совпадения, получено %d", len(found))
	}

	if all := manager.Search("   "); len(all) != 3 {
		t.Errorf("Пустой запрос должен вернуть все треки, получено %d", len(all))
	}

	if none := manager.Search("polka"); len(none) != 0 {
		t.Errorf("Ожидалось 0 совпадений, получено %d", len(none))
	}
}

func TestFilterAndCategories(t *testing.T) {
	manager := newTestManager(newMemoryRepository())

	createTrack(t, manager, "A", "Artist", data.CategoryRock)
	createTrack(t, manager, "B", "Artist", data.CategoryJazz)
	createTrack(t, manager, "C", "Artist", data.CategoryRock)

	rock := manager.FilterByCategory(data.CategoryRock)
	if len(rock) != 2 {
		t.Errorf("Ожидалось 2 трека rock, получено %d", len(rock))
	}
	for _, track := range rock {
		if track.Category != data.CategoryRock {
			t.Errorf("Неожиданная категория %s", track.Category)
		}
	}

	if all := manager.FilterByCategory(""); len(all) != 3 {
		t.Errorf("Пустая категория должна вернуть все треки, получено %d", len(all))
	}

	categories := manager.Categories()
	if fmt.Sprint(categories) != "[jazz rock]" {
		t.Errorf("Ожидались категории [jazz rock], получено %v", categories)
	}
}

func TestClearAllDoesNotRepublish(t *testing.T) {
	repo := newMemoryRepository()
	manager := newTestManager(repo)
	createTrack(t, manager, "Song", "Artist", data.CategoryPop)

	if err := manager.ClearAll(context.Background()); err != nil {
		t.Fatalf("Ошибка очистки: %v", err)
	}
	if len(manager.ListTracks()) != 1 {
		t.Error("Снимок не должен меняться до явной перезагрузки")
	}

	if err := manager.Load(context.Background()); err != nil {
		t.Fatalf("Ошибка загрузки: %v", err)
	}
	if len(manager.ListTracks()) != 0 {
		t.Errorf("После перезагрузки каталог должен быть пуст, получено %d", len(manager.ListTracks()))
	}
}

func TestLoadFailure(t *testing.T) {
	repo := newMemoryRepository()
	repo.loadErr = fmt.Errorf("%w: таймаут", data.ErrStoreUnavailable)
	manager := newTestManager(repo)

	err := manager.Load(context.Background())
	if !errors.Is(err, data.ErrStoreUnavailable) {
		t.Errorf("Ожидалась ErrStoreUnavailable, получено %v", err)
	}
	if manager.State().LoadingState != LoadingError {
		t.Errorf("Ожидалось состояние error, получено %s", manager.State().LoadingState)
	}
}

func TestManagerWithSQLiteStore(t *testing.T) {
	s := store.Open(filepath.Join(t.TempDir(), "library.db"))
	defer s.Close()

	ctx := context.Background()
	manager := newTestManager(s)

	track := createTrack(t, manager, "Persisted", "Artist", data.CategoryClassical)

	reopened := newTestManager(s)
	if err := reopened.Load(ctx); err != nil {
		t.Fatalf("Ошибка загрузки: %v", err)
	}

	got, ok := reopened.TrackByID(track.ID)
	if !ok {
		t.Fatal("Трек должен читаться из хранилища")
	}
	if got.Title != "Persisted" || got.Category != data.CategoryClassical || got.Duration != 3 {
		t.Errorf("Неожиданные метаданные: %+v", got)
	}
}
