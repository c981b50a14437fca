package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/hazadus/go-audiolib/internal/config"
	"github.com/hazadus/go-audiolib/internal/importer"
	"github.com/hazadus/go-audiolib/internal/logger"
	"github.com/hazadus/go-audiolib/internal/metadata"
	"github.com/hazadus/go-audiolib/internal/player"
	"github.com/hazadus/go-audiolib/internal/store"
	"github.com/hazadus/go-audiolib/internal/track"
)

// Application связывает хранилище, каталог и плеер на время работы программы
type Application struct {
	Config   *config.Config
	Store    *store.Store
	Catalog  *track.Manager
	Player   *player.Player
	Importer *importer.Importer

	decoder  track.DurationDecoder
	factory  player.MediaFactory
	speaker  *player.SpeakerOutput
	out      io.Writer
	closeLog func() error
}

// NewApplication создает приложение с воспроизведением через звуковую карту
func NewApplication(cfg *config.Config) *Application {
	speaker := player.NewSpeakerOutput()
	app := newApplication(cfg, metadata.DurationDecoder{}, speaker.NewMedia)
	app.speaker = speaker
	return app
}

// newApplication только запоминает зависимости; компоненты создаются в open
func newApplication(cfg *config.Config, decoder track.DurationDecoder, factory player.MediaFactory) *Application {
	return &Application{
		Config:  cfg,
		decoder: decoder,
		factory: factory,
		out:     os.Stdout,
	}
}

// open создает хранилище, каталог, плеер и импортер.
// Вызывается после настройки журнала: хранилище пишет в него из фоновой горутины.
func (app *Application) open() {
	if app.Store != nil {
		return
	}

	app.Store = store.Open(app.Config.DBPath, store.WithInitTimeout(app.Config.StoreInitTimeout))
	app.Catalog = track.NewManager(app.Store, app.decoder, track.WithCoverReader(metadata.NewExtractor()))
	app.Player = player.NewPlayer(app.factory, player.WithVolume(app.Config.DefaultVolume))
	app.Importer = importer.New(app.Catalog)
}

// setupLogging настраивает журнал; в консоль пишется только при verbose
func (app *Application) setupLogging(verbose bool) error {
	logConfig := logger.DefaultConfig()
	logConfig.Level = app.Config.LogLevel
	logConfig.File = app.Config.LogFile
	logConfig.Console = verbose

	closeLog, err := logger.Setup(logConfig)
	if err != nil {
		return err
	}
	app.closeLog = closeLog
	return nil
}

// load читает каталог из хранилища
func (app *Application) load(ctx context.Context) error {
	if err := app.Catalog.Load(ctx); err != nil {
		return fmt.Errorf("ошибка загрузки библиотеки: %w", err)
	}
	return nil
}

// Close освобождает плеер, звуковой вывод и хранилище
func (app *Application) Close() {
	if app.Player != nil {
		_ = app.Player.Close()
	}
	if app.speaker != nil {
		app.speaker.Close()
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
	if app.closeLog != nil {
		_ = app.closeLog()
	}
}

func main() {
	cfg, err := config.LoadConfig(config.DefaultPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApplication(cfg)
	err = app.createRootCommand(ctx).Execute()
	app.Close()

	if err != nil {
		os.Exit(1)
	}
}
