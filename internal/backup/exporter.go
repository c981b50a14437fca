package backup

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/hazadus/go-audiolib/internal/data"
)

// Ключи объектов в bucket
const (
	TracksPrefix = "tracks/"
	ManifestKey  = "library.yaml"
)

// manifestVersion - версия формата манифеста
const manifestVersion = 1

// Source - каталог, из которого выгружаются треки
type Source interface {
	ListTracks() []data.TrackMetadata
	Blob(ctx context.Context, id string) (*data.Blob, error)
}

// Manifest описывает выгруженную библиотеку
type Manifest struct {
	Version    int             `yaml:"version"`
	ExportedAt time.Time       `yaml:"exported_at"`
	Tracks     []ManifestEntry `yaml:"tracks"`
}

// ManifestEntry - метаданные трека и расположение его аудио
type ManifestEntry struct {
	data.TrackMetadata `yaml:",inline"`
	Key                string `yaml:"key"`
	MimeType           string `yaml:"mime_type"`
	Size               int    `yaml:"size"`
}

// Result содержит итог выгрузки
type Result struct {
	Uploaded    int
	Removed     int
	Bytes       int64
	ManifestURL string
}

// Exporter выгружает треки и манифест
type Exporter struct {
	uploader *Uploader
	source   Source
	now      func() time.Time
}

// NewExporter создает новый экспортер
func NewExporter(uploader *Uploader, source Source) *Exporter {
	return &Exporter{
		uploader: uploader,
		source:   source,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Export загружает аудио всех треков и манифест. С prune удаляет из bucket
// аудио треков, которых больше нет в библиотеке.
func (e *Exporter) Export(ctx context.Context, prune bool, onTrack func(data.TrackMetadata)) (*Result, error) {
	tracks := e.source.ListTracks()
	manifest := Manifest{
		Version:    manifestVersion,
		ExportedAt: e.now(),
		Tracks:     make([]ManifestEntry, 0, len(tracks)),
	}
	result := &Result{}
	exported := make(map[string]bool, len(tracks))

	for _, t := range tracks {
		blob, err := e.source.Blob(ctx, t.ID)
		if err != nil {
			return result, fmt.Errorf("ошибка чтения аудио трека %s: %w", t.ID, err)
		}

		key := ObjectKey(t.ID, blob.MimeType)
		if _, err := e.uploader.UploadFile(ctx, bytes.NewReader(blob.Data), key, blob.MimeType); err != nil {
			return result, fmt.Errorf("трек %s: %w", t.ID, err)
		}

		manifest.Tracks = append(manifest.Tracks, ManifestEntry{
			TrackMetadata: t,
			Key:           key,
			MimeType:      blob.MimeType,
			Size:          len(blob.Data),
		})
		exported[key] = true
		result.Uploaded++
		result.Bytes += int64(len(blob.Data))

		if onTrack != nil {
			onTrack(t)
		}
	}

	payload, err := yaml.Marshal(&manifest)
	if err != nil {
		return result, fmt.Errorf("ошибка сериализации манифеста: %w", err)
	}
	result.ManifestURL, err = e.uploader.UploadFile(ctx, bytes.NewReader(payload), ManifestKey, "application/yaml")
	if err != nil {
		return result, fmt.Errorf("манифест: %w", err)
	}

	if prune {
		keys, err := e.uploader.ListKeys(ctx, TracksPrefix)
		if err != nil {
			return result, err
		}
		for _, key := range keys {
			if exported[key] {
				continue
			}
			if err := e.uploader.DeleteFile(ctx, key); err != nil {
				return result, err
			}
			result.Removed++
		}
	}

	log.Info().
		Int("uploaded", result.Uploaded).
		Int("removed", result.Removed).
		Int64("bytes", result.Bytes).
		Msg("Library exported")

	return result, nil
}

// ObjectKey возвращает ключ объекта для аудио трека
func ObjectKey(id, mimeType string) string {
	return TracksPrefix + id + extension(mimeType)
}

// ParseManifest разбирает манифест из YAML
func ParseManifest(payload []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(payload, &manifest); err != nil {
		return nil, fmt.Errorf("ошибка разбора манифеста: %w", err)
	}
	return &manifest, nil
}

func extension(mimeType string) string {
	switch data.NormalizeMimeType(mimeType) {
	case data.MimeMPEG:
		return ".mp3"
	case data.MimeWAV:
		return ".wav"
	case data.MimeOGG:
		return ".ogg"
	case data.MimeWebM:
		return ".webm"
	}
	return ".bin"
}
