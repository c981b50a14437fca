// Package data содержит доменные типы библиотеки треков
package data

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Ограничения на поля трека
const (
	MaxTitleLength       = 50
	MaxArtistLength      = 50
	MaxDescriptionLength = 200
	MaxFileSize          = 10 * 1024 * 1024 // 10 МиБ
)

// Допустимые MIME-типы аудио
const (
	MimeMPEG = "audio/mpeg"
	MimeWAV  = "audio/wav"
	MimeOGG  = "audio/ogg"
	MimeWebM = "audio/webm"
)

var acceptedMimeTypes = map[string]struct{}{
	MimeMPEG: {},
	MimeWAV:  {},
	MimeOGG:  {},
	MimeWebM: {},
}

// Ошибки уровня хранилища и воспроизведения
var (
	ErrNotFound         = errors.New("трек не найден")
	ErrStoreUnavailable = errors.New("хранилище недоступно")
	ErrMedia            = errors.New("ошибка воспроизведения")
	ErrDecode           = errors.New("ошибка декодирования аудио")
)

// ValidationError описывает нарушение правила валидации поля
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError создает ошибку валидации для поля
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError сообщает, является ли err ошибкой валидации
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Category - жанр трека из фиксированного набора
type Category string

// Допустимые категории
const (
	CategoryPop        Category = "pop"
	CategoryRock       Category = "rock"
	CategoryRap        Category = "rap"
	CategoryJazz       Category = "jazz"
	CategoryClassical  Category = "classical"
	CategoryElectronic Category = "electronic"
	CategoryOther      Category = "other"
)

var categories = []Category{
	CategoryPop,
	CategoryRock,
	CategoryRap,
	CategoryJazz,
	CategoryClassical,
	CategoryElectronic,
	CategoryOther,
}

// Categories возвращает все допустимые категории
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid сообщает, входит ли категория в допустимый набор
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory разбирает строку в категорию без учета регистра
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("неизвестная категория %q", s)
	}
	return c, nil
}

// NormalizeMimeType приводит MIME-тип к нижнему регистру и отбрасывает параметры
func NormalizeMimeType(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if separator := strings.Index(normalized, ";"); separator >= 0 {
		normalized = strings.TrimSpace(normalized[:separator])
	}
	return normalized
}

// IsAcceptedMimeType сообщает, поддерживается ли MIME-тип аудио
func IsAcceptedMimeType(raw string) bool {
	_, ok := acceptedMimeTypes[NormalizeMimeType(raw)]
	return ok
}

// TrackMetadata - проекция трека без бинарных данных
type TrackMetadata struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Artist      string    `yaml:"artist"`
	Description string    `yaml:"description,omitempty"`
	Duration    int       `yaml:"duration"` // Длительность в секундах
	Category    Category  `yaml:"category"`
	CreatedAt   time.Time `yaml:"created_at"`
	HasCover    bool      `yaml:"has_cover"`
}

// Track - полная запись трека вместе с аудио
type Track struct {
	TrackMetadata
	Audio    []byte
	MimeType string
	Cover    []byte
}

// Metadata возвращает проекцию трека без бинарных данных
func (t *Track) Metadata() TrackMetadata {
	return t.TrackMetadata
}

// File - аудиофайл, переданный пользователем, с заявленным размером и типом
type File struct {
	Name     string
	MimeType string
	Size     int64
	Data     []byte
	Cover    []byte // Необязательная обложка
}

// Blob - бинарные данные трека из хранилища
type Blob struct {
	ID       string
	MimeType string
	Data     []byte
	Cover    []byte
}

// MetadataPatch - частичное обновление метаданных; nil означает "не менять"
type MetadataPatch struct {
	Title       *string
	Artist      *string
	Description *string
	Category    *Category
	Duration    *int
	HasCover    *bool
}

// Empty сообщает, что патч ничего не меняет
func (p MetadataPatch) Empty() bool {
	return p.Title == nil && p.Artist == nil && p.Description == nil &&
		p.Category == nil && p.Duration == nil && p.HasCover == nil
}
