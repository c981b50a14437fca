package track

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hazadus/go-audiolib/internal/data"
)

// Ошибки валидации в порядке проверки
var (
	ErrTitleRequired      = data.NewValidationError("title", "Название обязательно")
	ErrTitleTooLong       = data.NewValidationError("title", fmt.Sprintf("Название не должно превышать %d символов", data.MaxTitleLength))
	ErrArtistRequired     = data.NewValidationError("artist", "Исполнитель обязателен")
	ErrArtistTooLong      = data.NewValidationError("artist", fmt.Sprintf("Имя исполнителя не должно превышать %d символов", data.MaxArtistLength))
	ErrDescriptionTooLong = data.NewValidationError("description", fmt.Sprintf("Описание не должно превышать %d символов", data.MaxDescriptionLength))
	ErrInvalidCategory    = data.NewValidationError("category", "Недопустимая категория")
	ErrFileTooLarge       = data.NewValidationError("file", "Размер файла не должен превышать 10 МБ")
	ErrUnsupportedFormat  = data.NewValidationError("file", "Неподдерживаемый формат файла. Допустимы MP3, WAV, OGG и WebM")
	ErrFileRequired       = data.NewValidationError("file", "Аудиофайл обязателен")
)

// Fields - поля трека, подлежащие проверке
type Fields struct {
	Title       string
	Artist      string
	Description string
	Category    data.Category
	File        *data.File // nil, если файл не передается
}

// Validate проверяет поля за один проход; возвращается первое нарушенное правило.
// Хранилище не затрагивается.
func Validate(f Fields) error {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > data.MaxTitleLength {
		return ErrTitleTooLong
	}

	artist := strings.TrimSpace(f.Artist)
	if artist == "" {
		return ErrArtistRequired
	}
	if utf8.RuneCountInString(artist) > data.MaxArtistLength {
		return ErrArtistTooLong
	}

	if utf8.RuneCountInString(strings.TrimSpace(f.Description)) > data.MaxDescriptionLength {
		return ErrDescriptionTooLong
	}

	if !f.Category.Valid() {
		return ErrInvalidCategory
	}

	if f.File != nil {
		if fileSize(f.File) > data.MaxFileSize {
			return ErrFileTooLarge
		}
		if !data.IsAcceptedMimeType(f.File.MimeType) {
			return ErrUnsupportedFormat
		}
	}

	return nil
}

// fileSize возвращает больший из заявленного и фактического размеров
func fileSize(f *data.File) int64 {
	return max(f.Size, int64(len(f.Data)))
}
