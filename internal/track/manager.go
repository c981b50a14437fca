// Package track содержит логику управления каталогом треков
package track

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/metadata"
	"github.com/hazadus/go-audiolib/internal/observable"
)

// Repository - долговременное хранилище треков
type Repository interface {
	Put(ctx context.Context, track *data.Track) error
	AllMetadata(ctx context.Context) ([]data.TrackMetadata, error)
	Metadata(ctx context.Context, id string) (data.TrackMetadata, error)
	Blob(ctx context.Context, id string) (*data.Blob, error)
	UpdateMetadata(ctx context.Context, id string, patch data.MetadataPatch) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// DurationDecoder вычисляет длительность аудиоданных
type DurationDecoder interface {
	DecodeDuration(payload []byte, mimeType string) (time.Duration, error)
}

// CoverReader извлекает встроенную обложку из аудиоданных
type CoverReader interface {
	Cover(payload []byte) []byte
}

// LoadingState - состояние последней операции каталога
type LoadingState string

// Состояния загрузки
const (
	LoadingIdle    LoadingState = "idle"
	LoadingLoading LoadingState = "loading"
	LoadingSuccess LoadingState = "success"
	LoadingError   LoadingState = "error"
)

// State - публикуемый снимок каталога. Срез Tracks не изменяется после публикации.
type State struct {
	Tracks       []data.TrackMetadata
	LoadingState LoadingState
	Error        string
}

// CreateInput - данные для создания трека
type CreateInput struct {
	Title       string
	Artist      string
	Category    data.Category
	Description string
	File        *data.File
}

// UpdateInput - частичное обновление трека; nil означает "оставить как есть".
// Пустая строка в Description очищает описание.
type UpdateInput struct {
	Title       *string
	Artist      *string
	Category    *data.Category
	Description *string
	File        *data.File
}

// Option настраивает Manager
type Option func(*Manager)

// WithClock задает источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator задает генератор идентификаторов
func WithIDGenerator(newID func(time.Time) string) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

// WithCoverReader включает извлечение встроенных обложек
func WithCoverReader(r CoverReader) Option {
	return func(m *Manager) {
		m.covers = r
	}
}

// Manager - единственный источник истины для каталога треков.
// Подписчики вызываются под внутренней блокировкой и не должны синхронно
// вызывать изменяющие методы Manager.
type Manager struct {
	repo    Repository
	decoder DurationDecoder
	covers  CoverReader
	now     func() time.Time
	newID   func(time.Time) string

	mu    sync.Mutex // сериализует изменения и публикации
	state *observable.Subject[State]
}

// NewManager создает новый экземпляр Manager
func NewManager(repo Repository, decoder DurationDecoder, opts ...Option) *Manager {
	m := &Manager{
		repo:    repo,
		decoder: decoder,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   NewID,
		state:   observable.NewSubject(State{LoadingState: LoadingIdle}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewID формирует идентификатор из метки времени и случайного суффикса
func NewID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return strconv.FormatInt(t.UnixMilli(), 36) + "-" + suffix
}

// State возвращает последний опубликованный снимок
func (m *Manager) State() State {
	return m.state.Value()
}

// Subscribe подписывает fn на снимки каталога и сразу передает текущий
func (m *Manager) Subscribe(fn func(State)) func() {
	return m.state.Subscribe(fn)
}

// Load перечитывает каталог из хранилища
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLoading()
	return m.reload(ctx)
}

// Create проверяет поля, вычисляет длительность и сохраняет новый трек
func (m *Manager) Create(ctx context.Context, in CreateInput) (*data.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := Validate(Fields{
		Title:       in.Title,
		Artist:      in.Artist,
		Description: in.Description,
		Category:    in.Category,
		File:        in.File,
	})
	if err == nil && in.File == nil {
		err = ErrFileRequired
	}
	if err != nil {
		m.fail(err)
		return nil, err
	}

	m.setLoading()

	duration, err := m.decodeDuration(in.File)
	if err != nil {
		m.fail(err)
		return nil, err
	}

	createdAt := m.now()
	cover := m.cover(in.File)
	track := &data.Track{
		TrackMetadata: data.TrackMetadata{
			ID:          m.newID(createdAt),
			Title:       strings.TrimSpace(in.Title),
			Artist:      strings.TrimSpace(in.Artist),
			Description: strings.TrimSpace(in.Description),
			Duration:    duration,
			Category:    in.Category,
			CreatedAt:   createdAt,
			HasCover:    len(cover) > 0,
		},
		Audio:    in.File.Data,
		MimeType: data.NormalizeMimeType(in.File.MimeType),
		Cover:    cover,
	}

	if err := m.repo.Put(ctx, track); err != nil {
		err = fmt.Errorf("ошибка сохранения трека: %w", err)
		m.fail(err)
		return nil, err
	}

	if err := m.reload(ctx); err != nil {
		return nil, err
	}

	log.Info().
		Str("id", track.ID).
		Str("title", track.Title).
		Int("duration", track.Duration).
		Msg("Track created")

	return track, nil
}

// Update объединяет переданные поля с текущими, проверяет результат и сохраняет его.
// Если передан файл, аудио заменяется и длительность пересчитывается.
func (m *Manager) Update(ctx context.Context, id string, in UpdateInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.repo.Metadata(ctx, id)
	if err != nil {
		m.fail(err)
		return err
	}

	merged := current
	if in.Title != nil {
		merged.Title = *in.Title
	}
	if in.Artist != nil {
		merged.Artist = *in.Artist
	}
	if in.Category != nil {
		merged.Category = *in.Category
	}
	if in.Description != nil {
		merged.Description = *in.Description
	}

	err = Validate(Fields{
		Title:       merged.Title,
		Artist:      merged.Artist,
		Description: merged.Description,
		Category:    merged.Category,
		File:        in.File,
	})
	if err != nil {
		m.fail(err)
		return err
	}

	merged.Title = strings.TrimSpace(merged.Title)
	merged.Artist = strings.TrimSpace(merged.Artist)
	merged.Description = strings.TrimSpace(merged.Description)

	m.setLoading()

	if in.File != nil {
		err = m.replacePayload(ctx, merged, in.File)
	} else {
		err = m.repo.UpdateMetadata(ctx, id, patchFor(current, merged))
	}
	if err != nil {
		if !data.IsValidationError(err) && !errors.Is(err, data.ErrDecode) {
			err = fmt.Errorf("ошибка обновления трека: %w", err)
		}
		m.fail(err)
		return err
	}

	if err := m.reload(ctx); err != nil {
		return err
	}

	log.Info().Str("id", id).Bool("payload_replaced", in.File != nil).Msg("Track updated")
	return nil
}

// replacePayload перезаписывает трек целиком с новым аудио
func (m *Manager) replacePayload(ctx context.Context, meta data.TrackMetadata, file *data.File) error {
	duration, err := m.decodeDuration(file)
	if err != nil {
		return err
	}

	cover := m.cover(file)
	meta.Duration = duration
	meta.HasCover = len(cover) > 0

	return m.repo.Put(ctx, &data.Track{
		TrackMetadata: meta,
		Audio:         file.Data,
		MimeType:      data.NormalizeMimeType(file.MimeType),
		Cover:         cover,
	})
}

// patchFor возвращает только изменившиеся поля
func patchFor(current, merged data.TrackMetadata) data.MetadataPatch {
	var patch data.MetadataPatch
	if merged.Title != current.Title {
		patch.Title = &merged.Title
	}
	if merged.Artist != current.Artist {
		patch.Artist = &merged.Artist
	}
	if merged.Description != current.Description {
		patch.Description = &merged.Description
	}
	if merged.Category != current.Category {
		patch.Category = &merged.Category
	}
	return patch
}

// Delete удаляет трек; удаление отсутствующего трека успешно
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLoading()

	if err := m.repo.Delete(ctx, id); err != nil {
		err = fmt.Errorf("ошибка удаления трека: %w", err)
		m.fail(err)
		return err
	}

	if err := m.reload(ctx); err != nil {
		return err
	}

	log.Info().Str("id", id).Msg("Track deleted")
	return nil
}

// ClearAll очищает хранилище. Снимок каталога не перепубликуется:
// после очистки вызывающий должен выполнить Load.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Clear(ctx); err != nil {
		err = fmt.Errorf("ошибка очистки библиотеки: %w", err)
		m.fail(err)
		return err
	}
	return nil
}

// Blob возвращает аудиоданные трека из хранилища
func (m *Manager) Blob(ctx context.Context, id string) (*data.Blob, error) {
	return m.repo.Blob(ctx, id)
}

// TrackByID ищет трек в последнем загруженном снимке, не обращаясь к хранилищу
func (m *Manager) TrackByID(id string) (data.TrackMetadata, bool) {
	for _, t := range m.state.Value().Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return data.TrackMetadata{}, false
}

// ListTracks возвращает все треки, новые первыми
func (m *Manager) ListTracks() []data.TrackMetadata {
	tracks := m.state.Value().Tracks
	out := make([]data.TrackMetadata, len(tracks))
	copy(out, tracks)
	return out
}

// Search ищет подстроку в названии или имени исполнителя без учета регистра.
// Пустой запрос возвращает все треки.
func (m *Manager) Search(query string) []data.TrackMetadata {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return m.ListTracks()
	}

	var result []data.TrackMetadata
	for _, t := range m.state.Value().Tracks {
		if strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Artist), query) {
			result = append(result, t)
		}
	}
	return result
}

// FilterByCategory возвращает треки категории; пустая категория возвращает все
func (m *Manager) FilterByCategory(category data.Category) []data.TrackMetadata {
	if category == "" {
		return m.ListTracks()
	}

	var result []data.TrackMetadata
	for _, t := range m.state.Value().Tracks {
		if t.Category == category {
			result = append(result, t)
		}
	}
	return result
}

// Categories возвращает отсортированный список категорий, встречающихся в каталоге
func (m *Manager) Categories() []data.Category {
	seen := make(map[data.Category]struct{})
	var result []data.Category
	for _, t := range m.state.Value().Tracks {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		result = append(result, t.Category)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}

// decodeDuration возвращает длительность в целых секундах.
// Для форматов без декодера длительность считается нулевой.
func (m *Manager) decodeDuration(file *data.File) (int, error) {
	d, err := m.decoder.DecodeDuration(file.Data, file.MimeType)
	if errors.Is(err, metadata.ErrNoDecoder) {
		log.Warn().Str("mime", file.MimeType).Str("file", file.Name).Msg("Duration unavailable for format")
		return 0, nil
	}
	if err != nil {
		if !errors.Is(err, data.ErrDecode) {
			err = fmt.Errorf("%w: %w", data.ErrDecode, err)
		}
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return int(d / time.Second), nil
}

// cover выбирает явно переданную обложку, иначе встроенную в теги
func (m *Manager) cover(file *data.File) []byte {
	if len(file.Cover) > 0 {
		return file.Cover
	}
	if m.covers == nil {
		return nil
	}
	return m.covers.Cover(file.Data)
}

// reload читает все метаданные после записи и публикует успешный снимок
func (m *Manager) reload(ctx context.Context) error {
	tracks, err := m.repo.AllMetadata(ctx)
	if err != nil {
		err = fmt.Errorf("ошибка загрузки библиотеки: %w", err)
		m.fail(err)
		return err
	}

	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].CreatedAt.Equal(tracks[j].CreatedAt) {
			return tracks[i].ID > tracks[j].ID
		}
		return tracks[i].CreatedAt.After(tracks[j].CreatedAt)
	})

	m.state.Publish(State{
		Tracks:       tracks,
		LoadingState: LoadingSuccess,
	})
	return nil
}

// setLoading публикует состояние загрузки, сохраняя текущие треки
func (m *Manager) setLoading() {
	m.state.Publish(State{
		Tracks:       m.state.Value().Tracks,
		LoadingState: LoadingLoading,
	})
}

// fail публикует ошибку, сохраняя ранее опубликованные треки
func (m *Manager) fail(err error) {
	log.Error().Err(err).Msg("Catalog operation failed")
	m.state.Publish(State{
		Tracks:       m.state.Value().Tracks,
		LoadingState: LoadingError,
		Error:        err.Error(),
	})
}
