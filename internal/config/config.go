// Package config содержит функции для загрузки конфигурации приложения
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazadus/go-audiolib/internal/backup"
)

// DefaultPath - путь к файлу конфигурации по умолчанию
const DefaultPath = "~/.audiolib.yaml"

// envPrefix - префикс переменных окружения, переопределяющих файл
const envPrefix = "AUDIOLIB_"

// Config структура для хранения конфигурации приложения
type Config struct {
	DBPath           string        `yaml:"db_path"`
	StoreInitTimeout time.Duration `yaml:"store_init_timeout"`
	DefaultVolume    float64       `yaml:"default_volume"`
	LogLevel         string        `yaml:"log_level"`
	LogFile          string        `yaml:"log_file"`
	ImportDir        string        `yaml:"import_dir"`
	DownloadDir      string        `yaml:"download_dir"`
	AwsBucketName    string        `yaml:"aws_bucket_name"`
	AwsAccessKey     string        `yaml:"aws_access_key"`
	AwsSecretKey     string        `yaml:"aws_secret_key"`
	AwsRegion        string        `yaml:"aws_region"`
	AwsEndpoint      string        `yaml:"aws_endpoint"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		DBPath:           "~/.audiolib/library.db",
		StoreInitTimeout: 5 * time.Second,
		DefaultVolume:    0.7,
		LogLevel:         "info",
		LogFile:          "~/.audiolib/audiolib.log",
		ImportDir:        "~/Music/audiolib",
		DownloadDir:      "~/Downloads",
		AwsRegion:        "us-east-1",
	}
}

// LoadConfig загружает конфигурацию приложения из указанного файла.
// Если файла нет, используются значения по умолчанию. Переменные окружения
// AUDIOLIB_* (в том числе из файла .env) переопределяют значения из файла.
func LoadConfig(filePath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	config := Default()

	content, err := os.ReadFile(expandHome(filePath, home))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Работаем со значениями по умолчанию
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(content, config); err != nil {
			return nil, fmt.Errorf("ошибка разбора yaml: %w", err)
		}
	}

	// .env не перезаписывает уже заданные переменные окружения
	_ = godotenv.Load()

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.setDefaults()

	// Раскрываем тильду в путях
	config.DBPath = expandHome(config.DBPath, home)
	config.LogFile = expandHome(config.LogFile, home)
	config.ImportDir = expandHome(config.ImportDir, home)
	config.DownloadDir = expandHome(config.DownloadDir, home)

	return config, nil
}

// BackupConfig возвращает настройки S3 для выгрузки библиотеки
func (c *Config) BackupConfig() *backup.Config {
	return &backup.Config{
		Region:     c.AwsRegion,
		AccessKey:  c.AwsAccessKey,
		SecretKey:  c.AwsSecretKey,
		Endpoint:   c.AwsEndpoint,
		BucketName: c.AwsBucketName,
	}
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.ImportDir = getEnv("IMPORT_DIR", c.ImportDir)
	c.DownloadDir = getEnv("DOWNLOAD_DIR", c.DownloadDir)
	c.AwsBucketName = getEnv("AWS_BUCKET_NAME", c.AwsBucketName)
	c.AwsAccessKey = getEnv("AWS_ACCESS_KEY", c.AwsAccessKey)
	c.AwsSecretKey = getEnv("AWS_SECRET_KEY", c.AwsSecretKey)
	c.AwsRegion = getEnv("AWS_REGION", c.AwsRegion)
	c.AwsEndpoint = getEnv("AWS_ENDPOINT", c.AwsEndpoint)

	if value, ok := os.LookupEnv(envPrefix + "STORE_INIT_TIMEOUT"); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("неверное значение %sSTORE_INIT_TIMEOUT: %w", envPrefix, err)
		}
		c.StoreInitTimeout = timeout
	}
	if value, ok := os.LookupEnv(envPrefix + "DEFAULT_VOLUME"); ok {
		volume, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("неверное значение %sDEFAULT_VOLUME: %w", envPrefix, err)
		}
		c.DefaultVolume = volume
	}
	return nil
}

// setDefaults заполняет значения, оставленные пустыми в файле
func (c *Config) setDefaults() {
	defaults := Default()
	if c.DBPath == "" {
		c.DBPath = defaults.DBPath
	}
	if c.StoreInitTimeout <= 0 {
		c.StoreInitTimeout = defaults.StoreInitTimeout
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > 1 {
		c.DefaultVolume = defaults.DefaultVolume
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.DownloadDir == "" {
		c.DownloadDir = defaults.DownloadDir
	}
	if c.ImportDir == "" {
		c.ImportDir = defaults.ImportDir
	}
}

// getEnv возвращает значение переменной окружения с префиксом или fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return fallback
}

func expandHome(path, home string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		return home + path[1:]
	}
	return path
}
