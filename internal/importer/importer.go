// Package importer читает аудиофайлы с диска или по ссылке и добавляет их в каталог
package importer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/metadata"
	"github.com/hazadus/go-audiolib/internal/streaming"
	"github.com/hazadus/go-audiolib/internal/track"
)

const downloadBufferSize = 256 * 1024 // 256KB буфер

// Catalog - операция каталога, через которую выполняется импорт
type Catalog interface {
	Create(ctx context.Context, in track.CreateInput) (*data.Track, error)
}

// Options переопределяет поля, прочитанные из тегов; пустые значения не переопределяют
type Options struct {
	Title       string
	Artist      string
	Description string
	Category    data.Category
	OnProgress  func(read int64) // Прогресс чтения данных
}

// Importer управляет процессом импорта файлов
type Importer struct {
	catalog   Catalog
	extractor *metadata.Extractor
}

// New создает новый импортер
func New(catalog Catalog) *Importer {
	return &Importer{
		catalog:   catalog,
		extractor: metadata.NewExtractor(),
	}
}

// ReadFile читает файл с диска. Для файлов больше допустимого размера
// данные не читаются: заявленный размер отклоняется при валидации.
func (i *Importer) ReadFile(path string, onProgress func(int64)) (*data.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("файл не найден: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s является каталогом", path)
	}

	file := &data.File{
		Name: filepath.Base(path),
		Size: info.Size(),
	}
	if info.Size() > data.MaxFileSize {
		file.MimeType = mimeTypeByExtension(path)
		return file, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if onProgress != nil {
		reader = &ProgressReader{Reader: f, Size: info.Size(), OnProgress: onProgress}
	}

	file.Data, err = io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	file.Size = int64(len(file.Data))
	file.MimeType = DetectMimeType(file.Data, path)
	return file, nil
}

// ReadURL загружает файл по ссылке, не более допустимого размера
func (i *Importer) ReadURL(ctx context.Context, rawURL string, onProgress func(int64)) (*data.File, error) {
	reader, err := streaming.NewReader(ctx, rawURL, downloadBufferSize)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	name := fileNameFromURL(rawURL)
	if length := reader.ContentLength(); length > data.MaxFileSize {
		return &data.File{
			Name:     name,
			Size:     length,
			MimeType: data.NormalizeMimeType(reader.ContentType()),
		}, nil
	}

	var payload []byte
	if onProgress != nil {
		progress := &ProgressReader{Reader: reader, Size: reader.ContentLength(), OnProgress: onProgress}
		payload, err = io.ReadAll(io.LimitReader(progress, data.MaxFileSize+1))
	} else {
		payload, err = reader.ReadAll(data.MaxFileSize + 1)
	}
	if err != nil {
		return nil, err
	}

	mimeType := DetectMimeType(payload, name)
	if !data.IsAcceptedMimeType(mimeType) && data.IsAcceptedMimeType(reader.ContentType()) {
		mimeType = data.NormalizeMimeType(reader.ContentType())
	}

	return &data.File{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(payload)),
		Data:     payload,
	}, nil
}

// Import создает трек из файла. Пустые поля заполняются из тегов и имени файла.
func (i *Importer) Import(ctx context.Context, file *data.File, opts Options) (*data.Track, error) {
	var tags metadata.Tags
	if len(file.Data) > 0 {
		tags = i.extractor.ExtractFromBytes(file.Data, file.Name)
	} else {
		tags = metadata.DefaultTags(file.Name)
	}

	in := track.CreateInput{
		Title:       firstNonEmpty(opts.Title, tags.Title),
		Artist:      firstNonEmpty(opts.Artist, tags.Artist),
		Description: opts.Description,
		Category:    opts.Category,
		File:        file,
	}
	if in.Category == "" {
		in.Category = metadata.CategoryFromGenre(tags.Genre)
	}
	if in.Description == "" && tags.Album != "" {
		in.Description = "Альбом: " + tags.Album
	}

	created, err := i.catalog.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("id", created.ID).
		Str("file", file.Name).
		Str("mime", file.MimeType).
		Int64("size", file.Size).
		Msg("Track imported")

	return created, nil
}

// ImportFile читает файл с диска и создает трек
func (i *Importer) ImportFile(ctx context.Context, path string, opts Options) (*data.Track, error) {
	file, err := i.ReadFile(path, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, file, opts)
}

// ImportURL загружает файл по ссылке и создает трек
func (i *Importer) ImportURL(ctx context.Context, rawURL string, opts Options) (*data.Track, error) {
	file, err := i.ReadURL(ctx, rawURL, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, file, opts)
}

// DetectMimeType определяет аудиоформат по содержимому, затем по расширению
func DetectMimeType(payload []byte, name string) string {
	detected := mimetype.Detect(payload)
	switch {
	case detected.Is("audio/mpeg"):
		return data.MimeMPEG
	case detected.Is("audio/wav"):
		return data.MimeWAV
	case detected.Is("audio/ogg"):
		return data.MimeOGG
	case detected.Is("video/webm"), detected.Is("audio/webm"):
		return data.MimeWebM
	}

	if byExt := mimeTypeByExtension(name); byExt != "" {
		return byExt
	}
	return data.NormalizeMimeType(detected.String())
}

// fileNameFromURL возвращает декодированное имя файла из пути ссылки
func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "download"
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "download"
	}
	return name
}

func mimeTypeByExtension(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return data.MimeMPEG
	case ".wav":
		return data.MimeWAV
	case ".ogg", ".oga":
		return data.MimeOGG
	case ".webm", ".weba":
		return data.MimeWebM
	}
	return ""
}

// IsAudioFile сообщает, похоже ли имя файла на поддерживаемый аудиофайл
func IsAudioFile(name string) bool {
	return mimeTypeByExtension(name) != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ProgressReader структура для отслеживания прогресса чтения
type ProgressReader struct {
	io.Reader
	Size       int64
	OnProgress func(int64)
	bytesRead  int64
}

func (pr *ProgressReader) Read(p []byte) (n int, err error) {
	n, err = pr.Reader.Read(p)
	pr.bytesRead += int64(n)
	if pr.OnProgress != nil {
		pr.OnProgress(pr.bytesRead)
	}
	return n, err
}
