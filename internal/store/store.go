// Package store реализует долговременное хранилище треков:
// таблицу метаданных и таблицу бинарных данных в локальной SQLite
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hazadus/go-audiolib/internal/data"
)

// DefaultInitTimeout - сколько операции ждут завершения инициализации
const DefaultInitTimeout = 5 * time.Second

// ErrMissingPayload возвращается при попытке записать метаданные без аудио для нового трека
var ErrMissingPayload = errors.New("нельзя сохранить метаданные без аудиоданных")

// Opener открывает базу данных по пути
type Opener func(path string) (*gorm.DB, error)

// Option настраивает Store
type Option func(*Store)

// WithInitTimeout задает предельное время ожидания инициализации
func WithInitTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.initTimeout = d
	}
}

// WithOpener подменяет функцию открытия базы данных
func WithOpener(open Opener) Option {
	return func(s *Store) {
		s.open = open
	}
}

// Store хранит метаданные и аудио треков в двух таблицах
type Store struct {
	path        string
	initTimeout time.Duration
	open        Opener

	ready   chan struct{}
	db      *gorm.DB
	initErr error

	closed    atomic.Bool
	closeOnce sync.Once
}

// Open создает хранилище и запускает инициализацию в фоне.
// Операции, вызванные до ее завершения, ожидают готовности.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:        path,
		initTimeout: DefaultInitTimeout,
		open:        openSQLite,
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.init()

	return s
}

func (s *Store) init() {
	defer close(s.ready)

	db, err := s.open(s.path)
	if err != nil {
		s.initErr = fmt.Errorf("ошибка открытия базы данных: %w", err)
		log.Error().Err(err).Str("path", s.path).Msg("Failed to open track store")
		return
	}

	if err := db.AutoMigrate(&metadataRow{}, &blobRow{}); err != nil {
		s.initErr = fmt.Errorf("ошибка миграции схемы: %w", err)
		log.Error().Err(err).Str("path", s.path).Msg("Failed to migrate track store")
		return
	}

	s.db = db
	log.Info().Str("path", s.path).Msg("Track store opened")
}

// openSQLite открывает файл SQLite, создавая каталог при необходимости
func openSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("ошибка создания каталога базы данных: %w", err)
		}
		dsn = path + "?_journal=WAL&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite допускает только одного писателя
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Ready ждет завершения инициализации хранилища
func (s *Store) Ready(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

// conn возвращает соединение, дождавшись инициализации
func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	select {
	case <-s.ready:
	default:
		timer := time.NewTimer(s.initTimeout)
		defer timer.Stop()

		select {
		case <-s.ready:
		case <-timer.C:
			return nil, fmt.Errorf("%w: инициализация не завершилась за %s", data.ErrStoreUnavailable, s.initTimeout)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", data.ErrStoreUnavailable, ctx.Err())
		}
	}

	if s.initErr != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrStoreUnavailable, s.initErr)
	}
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: хранилище закрыто", data.ErrStoreUnavailable)
	}

	return s.db.WithContext(ctx), nil
}

// unavailable оборачивает сбой транзакции
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", data.ErrStoreUnavailable, op, err)
}

// Put записывает метаданные и, если есть, аудио трека одной транзакцией
func (s *Store) Put(ctx context.Context, track *data.Track) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	meta := toMetadataRow(track.TrackMetadata)
	err = db.Transaction(func(tx *gorm.DB) error {
		if len(track.Audio) == 0 {
			var count int64
			if err := tx.Model(&blobRow{}).Where("id = ?", track.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrMissingPayload
			}
		}

		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error; err != nil {
			return err
		}

		if len(track.Audio) > 0 {
			blob := blobRow{
				ID:       track.ID,
				MimeType: track.MimeType,
				Data:     track.Audio,
				Cover:    track.Cover,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&blob).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrMissingPayload) {
		return err
	}
	if err != nil {
		return unavailable("запись трека "+track.ID, err)
	}
	return nil
}

// AllMetadata возвращает метаданные всех треков без гарантии порядка
func (s *Store) AllMetadata(ctx context.Context) ([]data.TrackMetadata, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []metadataRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, unavailable("чтение метаданных", err)
	}

	tracks := make([]data.TrackMetadata, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, row.toMetadata())
	}
	return tracks, nil
}

// Metadata возвращает метаданные трека или data.ErrNotFound
func (s *Store) Metadata(ctx context.Context, id string) (data.TrackMetadata, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return data.TrackMetadata{}, err
	}

	var row metadataRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return data.TrackMetadata{}, data.ErrNotFound
		}
		return data.TrackMetadata{}, unavailable("чтение метаданных "+id, err)
	}
	return row.toMetadata(), nil
}

// Blob возвращает аудиоданные трека или data.ErrNotFound
func (s *Store) Blob(ctx context.Context, id string) (*data.Blob, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var row blobRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, data.ErrNotFound
		}
		return nil, unavailable("чтение аудио "+id, err)
	}
	return &data.Blob{
		ID:       row.ID,
		MimeType: row.MimeType,
		Data:     row.Data,
		Cover:    row.Cover,
	}, nil
}

// UpdateMetadata применяет частичное обновление к метаданным, не трогая аудио
func (s *Store) UpdateMetadata(ctx context.Context, id string, patch data.MetadataPatch) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var row metadataRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return err
		}
		if patch.Empty() {
			return nil
		}
		return tx.Model(&row).Updates(patchColumns(patch)).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return data.ErrNotFound
	}
	if err != nil {
		return unavailable("обновление метаданных "+id, err)
	}
	return nil
}

// Delete удаляет обе записи трека; удаление отсутствующего трека не является ошибкой
func (s *Store) Delete(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Delete(&blobRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&metadataRow{}).Error
	})
	if err != nil {
		return unavailable("удаление трека "+id, err)
	}
	return nil
}

// Clear очищает обе таблицы
func (s *Store) Clear(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&blobRow{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&metadataRow{}).Error
	})
	if err != nil {
		return unavailable("очистка хранилища", err)
	}
	log.Info().Str("path", s.path).Msg("Track store cleared")
	return nil
}

// Close закрывает соединение с базой данных
func (s *Store) Close() error {
	<-s.ready
	if s.db == nil {
		return nil
	}

	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		sqlDB, dbErr := s.db.DB()
		if dbErr != nil {
			err = dbErr
			return
		}
		err = sqlDB.Close()
	})
	return err
}
