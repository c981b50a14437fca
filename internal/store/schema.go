package store

import (
	"time"

	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hazadus/go-audiolib/internal/data"
)

// metadataRow - строка таблицы метаданных
type metadataRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Title       string `gorm:"not null"`
	Artist      string `gorm:"not null"`
	Description string
	Duration    int
	Category    string    `gorm:"index;not null"`
	CreatedAt   time.Time `gorm:"index"`
	HasCover    bool
}

func (metadataRow) TableName() string {
	return "track_metadata"
}

// blobRow - строка таблицы бинарных данных
type blobRow struct {
	ID       string `gorm:"primaryKey;size:64"`
	MimeType string
	Data     []byte
	Cover    []byte
}

func (blobRow) TableName() string {
	return "track_blobs"
}

func toMetadataRow(m data.TrackMetadata) metadataRow {
	return metadataRow{
		ID:          m.ID,
		Title:       m.Title,
		Artist:      m.Artist,
		Description: m.Description,
		Duration:    m.Duration,
		Category:    string(m.Category),
		CreatedAt:   m.CreatedAt,
		HasCover:    m.HasCover,
	}
}

func (r metadataRow) toMetadata() data.TrackMetadata {
	return data.TrackMetadata{
		ID:          r.ID,
		Title:       r.Title,
		Artist:      r.Artist,
		Description: r.Description,
		Duration:    r.Duration,
		Category:    data.Category(r.Category),
		CreatedAt:   r.CreatedAt,
		HasCover:    r.HasCover,
	}
}

// patchColumns переводит патч в набор колонок; пустые строки тоже записываются
func patchColumns(p data.MetadataPatch) map[string]interface{} {
	columns := make(map[string]interface{})
	if p.Title != nil {
		columns["title"] = *p.Title
	}
	if p.Artist != nil {
		columns["artist"] = *p.Artist
	}
	if p.Description != nil {
		columns["description"] = *p.Description
	}
	if p.Category != nil {
		columns["category"] = string(*p.Category)
	}
	if p.Duration != nil {
		columns["duration"] = *p.Duration
	}
	if p.HasCover != nil {
		columns["has_cover"] = *p.HasCover
	}
	return columns
}

// gormWriter направляет сообщения gorm в zerolog
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
