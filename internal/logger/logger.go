// Package logger настраивает глобальный логгер zerolog
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config содержит настройки логирования
type Config struct {
	Level      string
	File       string // Пустая строка отключает запись в файл
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool
	ConsoleOut io.Writer // По умолчанию os.Stderr
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Console:    true,
	}
}

// Setup настраивает глобальный логгер. Возвращаемая функция закрывает файл журнала.
func Setup(config Config) (func() error, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	closer := func() error { return nil }

	if config.Console {
		out := config.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, fmt.Errorf("ошибка создания каталога журнала: %w", err)
		}
		// JSON-строки с ротацией
		rotating := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
		}
		writers = append(writers, rotating)
		closer = rotating.Close
	}

	var output io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		output = writers[0]
	default:
		output = zerolog.MultiLevelWriter(writers...)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return closer, nil
}

// ParseLevel разбирает уровень логирования; пустая строка означает info
func ParseLevel(value string) (zerolog.Level, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("неизвестный уровень логирования %q: %w", value, err)
	}
	return level, nil
}
