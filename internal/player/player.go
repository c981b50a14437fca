// Package player содержит движок воспроизведения с единственной активной сессией
package player

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/observable"
)

// DefaultVolume - громкость при запуске
const DefaultVolume = 0.7

// State - состояние воспроизведения
type State string

// Состояния плеера
const (
	StateStopped   State = "stopped"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
)

// TrackInfo - сведения о загруженном треке; плеер не владеет треком
type TrackInfo struct {
	ID     string
	Title  string
	Artist string
}

// Status - снимок состояния плеера
type Status struct {
	State    State
	Track    *TrackInfo
	Position time.Duration
	Duration time.Duration
	Volume   float64
	Loading  bool
}

// Events получает уведомления от медиаресурса
type Events interface {
	OnReady(duration time.Duration)
	OnTime(position time.Duration)
	OnEnded()
	OnError(err error)
}

// Media - медиаресурс одной сессии воспроизведения
type Media interface {
	Play() error
	Pause()
	Seek(position time.Duration)
	SetVolume(level float64)
	Close() error
}

// MediaFactory создает медиаресурс для аудиоданных
type MediaFactory func(payload []byte, mimeType string, events Events) (Media, error)

// Option настраивает Player
type Option func(*Player)

// WithVolume задает начальную громкость
func WithVolume(level float64) Option {
	return func(p *Player) {
		p.status.Volume = clampVolume(level)
	}
}

// Player управляет воспроизведением треков.
// Подписчики вызываются под внутренней блокировкой и не должны синхронно
// вызывать методы Player.
type Player struct {
	factory MediaFactory

	mu      sync.Mutex
	media   Media
	session uint64 // номер текущей сессии; события старых сессий игнорируются
	status  Status
	failure error // ошибка ресурса текущей сессии; Play сообщает ее вызывающему

	statusSubject *observable.Subject[Status]
}

// NewPlayer создает новый экземпляр плеера
func NewPlayer(factory MediaFactory, opts ...Option) *Player {
	p := &Player{
		factory: factory,
		status: Status{
			State:  StateStopped,
			Volume: DefaultVolume,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.statusSubject = observable.NewSubject(p.status)
	return p
}

// Status возвращает текущий снимок состояния
func (p *Player) Status() Status {
	return p.statusSubject.Value()
}

// Subscribe подписывает fn на снимки состояния и сразу передает текущий
func (p *Player) Subscribe(fn func(Status)) func() {
	return p.statusSubject.Subscribe(fn)
}

// Load заменяет текущую сессию новой; предыдущий ресурс освобождается
func (p *Player) Load(track TrackInfo, payload []byte, mimeType string) error {
	p.mu.Lock()
	p.releaseLocked()
	p.session++
	p.failure = nil
	session := p.session

	info := track
	p.status = Status{
		State:   StateBuffering,
		Track:   &info,
		Volume:  p.status.Volume,
		Loading: true,
	}
	p.publishLocked()
	p.mu.Unlock()

	media, err := p.factory(payload, mimeType, &sessionEvents{player: p, session: session})

	p.mu.Lock()
	defer p.mu.Unlock()

	if session != p.session {
		// Пока ресурс создавался, была загружена другая сессия
		if media != nil {
			_ = media.Close()
		}
		return nil
	}

	if err != nil {
		p.status.State = StateStopped
		p.status.Loading = false
		p.publishLocked()
		log.Error().Err(err).Str("track_id", track.ID).Msg("Failed to load media")
		return fmt.Errorf("%w: %w", data.ErrMedia, err)
	}

	p.media = media
	media.SetVolume(p.status.Volume)

	log.Debug().Str("track_id", track.ID).Str("mime", mimeType).Msg("Media loaded")
	return nil
}

// Play запускает воспроизведение; без загруженного трека ничего не делает
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		if p.failure != nil {
			p.status.State = StateStopped
			p.publishLocked()
			return p.failure
		}
		return nil
	}

	if err := p.media.Play(); err != nil {
		p.status.State = StateStopped
		p.status.Loading = false
		p.publishLocked()
		log.Error().Err(err).Msg("Failed to start playback")
		return fmt.Errorf("%w: %w", data.ErrMedia, err)
	}

	p.status.State = StatePlaying
	p.publishLocked()
	return nil
}

// Pause приостанавливает воспроизведение с сохранением позиции.
// Действует только из состояния playing.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil || p.status.State != StatePlaying {
		return
	}

	p.media.Pause()
	p.status.State = StatePaused
	p.publishLocked()
}

// Stop останавливает воспроизведение и возвращает позицию в начало
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media != nil {
		p.media.Pause()
		p.media.Seek(0)
	}
	p.status.State = StateStopped
	p.status.Position = 0
	p.publishLocked()
}

// Seek перематывает на позицию, ограниченную диапазоном [0, длительность]
func (p *Player) Seek(position time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return
	}

	if position < 0 {
		position = 0
	}
	if position > p.status.Duration {
		position = p.status.Duration
	}

	p.media.Seek(position)
	p.status.Position = position
	p.publishLocked()
}

// SetVolume задает громкость в диапазоне [0, 1]
func (p *Player) SetVolume(level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Volume = clampVolume(level)
	if p.media != nil {
		p.media.SetVolume(p.status.Volume)
	}
	p.publishLocked()
}

// Unload освобождает ресурс и сбрасывает состояние, сохраняя громкость
func (p *Player) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()
	p.session++
	p.failure = nil
	p.status = Status{
		State:  StateStopped,
		Volume: p.status.Volume,
	}
	p.publishLocked()
}

// Close закрывает плеер и освобождает ресурсы
func (p *Player) Close() error {
	p.Unload()
	return nil
}

// releaseLocked закрывает текущий ресурс (должен вызываться под мьютексом)
func (p *Player) releaseLocked() {
	if p.media == nil {
		return
	}
	if err := p.media.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to release media")
	}
	p.media = nil
}

func (p *Player) publishLocked() {
	status := p.status
	if status.Track != nil {
		info := *status.Track
		status.Track = &info
	}
	p.statusSubject.Publish(status)
}

// handle применяет событие, если оно относится к текущей сессии
func (p *Player) handle(session uint64, apply func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if session != p.session {
		return
	}
	apply()
}

func clampVolume(level float64) float64 {
	if math.IsNaN(level) || level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

// sessionEvents привязывает события медиаресурса к сессии
type sessionEvents struct {
	player  *Player
	session uint64
}

func (e *sessionEvents) OnReady(duration time.Duration) {
	p := e.player
	p.handle(e.session, func() {
		p.status.Loading = false
		p.status.Duration = duration
		p.publishLocked()
	})
}

func (e *sessionEvents) OnTime(position time.Duration) {
	p := e.player
	p.handle(e.session, func() {
		if p.status.Position == position {
			return
		}
		p.status.Position = position
		p.publishLocked()
	})
}

func (e *sessionEvents) OnEnded() {
	p := e.player
	p.handle(e.session, func() {
		if p.media != nil {
			p.media.Seek(0)
		}
		p.status.State = StateStopped
		p.status.Position = 0
		p.publishLocked()
	})
}

func (e *sessionEvents) OnError(err error) {
	p := e.player
	p.handle(e.session, func() {
		log.Error().Err(err).Msg("Media error")
		if !errors.Is(err, data.ErrMedia) {
			err = fmt.Errorf("%w: %w", data.ErrMedia, err)
		}
		p.releaseLocked()
		p.failure = err
		p.status.State = StateStopped
		p.status.Loading = false
		p.publishLocked()
	})
}
