// Package metadata извлекает теги, обложки и длительность из аудиоданных
package metadata

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/hazadus/go-audiolib/internal/data"
)

// Tags хранит теги, прочитанные из аудиофайла
type Tags struct {
	Artist string
	Title  string
	Album  string
	Genre  string
	Cover  []byte // Встроенная обложка, если есть
}

// Extractor извлекает теги из аудиоданных
type Extractor struct{}

// NewExtractor создает новый экстрактор метаданных
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFromReader извлекает теги из io.ReadSeeker.
// Пустые поля дополняются значениями, разобранными из имени source.
func (e *Extractor) ExtractFromReader(reader io.ReadSeeker, source string) Tags {
	defaults := DefaultTags(source)

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return defaults
	}

	metadata, err := tag.ReadFrom(reader)
	if err != nil {
		return defaults
	}

	tags := Tags{
		Artist: strings.TrimSpace(metadata.Artist()),
		Title:  strings.TrimSpace(metadata.Title()),
		Album:  strings.TrimSpace(metadata.Album()),
		Genre:  strings.TrimSpace(metadata.Genre()),
	}
	if picture := metadata.Picture(); picture != nil && len(picture.Data) > 0 {
		tags.Cover = picture.Data
	}

	if tags.Artist == "" {
		tags.Artist = defaults.Artist
	}
	if tags.Title == "" {
		tags.Title = defaults.Title
	}
	return tags
}

// ExtractFromBytes извлекает теги из содержимого файла
func (e *Extractor) ExtractFromBytes(payload []byte, source string) Tags {
	return e.ExtractFromReader(bytes.NewReader(payload), source)
}

// ExtractFromFile извлекает теги из файла
func (e *Extractor) ExtractFromFile(filePath string) Tags {
	file, err := os.Open(filePath)
	if err != nil {
		return DefaultTags(filePath)
	}
	defer file.Close()

	return e.ExtractFromReader(file, filePath)
}

// Cover возвращает встроенную обложку или nil
func (e *Extractor) Cover(payload []byte) []byte {
	metadata, err := tag.ReadFrom(bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	picture := metadata.Picture()
	if picture == nil || len(picture.Data) == 0 {
		return nil
	}
	return picture.Data
}

// DefaultTags возвращает теги на основе имени файла в формате "Artist - Title"
func DefaultTags(source string) Tags {
	fileName := filepath.Base(source)
	nameWithoutExt := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	parts := strings.Split(nameWithoutExt, " - ")
	if len(parts) >= 2 {
		return Tags{
			Artist: strings.TrimSpace(parts[0]),
			Title:  strings.TrimSpace(strings.Join(parts[1:], " - ")),
		}
	}

	return Tags{
		Artist: "Unknown Artist",
		Title:  nameWithoutExt,
	}
}

// genreCategories сопоставляет распространенные жанры ID3 с категориями.
// Порядок важен: побеждает первое совпадение.
var genreCategories = []struct {
	genre    string
	category data.Category
}{
	{"classical", data.CategoryClassical},
	{"electronic", data.CategoryElectronic},
	{"techno", data.CategoryElectronic},
	{"house", data.CategoryElectronic},
	{"trance", data.CategoryElectronic},
	{"dance", data.CategoryElectronic},
	{"hip-hop", data.CategoryRap},
	{"hip hop", data.CategoryRap},
	{"rap", data.CategoryRap},
	{"jazz", data.CategoryJazz},
	{"blues", data.CategoryJazz},
	{"metal", data.CategoryRock},
	{"punk", data.CategoryRock},
	{"rock", data.CategoryRock},
	{"pop", data.CategoryPop},
}

// CategoryFromGenre подбирает категорию по жанру из тегов, иначе other
func CategoryFromGenre(genre string) data.Category {
	normalized := strings.ToLower(strings.TrimSpace(genre))
	if normalized == "" {
		return data.CategoryOther
	}
	for _, g := range genreCategories {
		if strings.Contains(normalized, g.genre) {
			return g.category
		}
	}
	return data.CategoryOther
}
