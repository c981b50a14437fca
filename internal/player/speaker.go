package player

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"github.com/rs/zerolog/log"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/metadata"
)

const (
	speakerSampleRate = beep.SampleRate(44100)
	resampleQuality   = 4
	timeUpdateEvery   = 250 * time.Millisecond
)

var errMediaClosed = errors.New("медиаресурс закрыт")

// SpeakerOutput воспроизводит аудио через системный звуковой вывод
type SpeakerOutput struct {
	mu          sync.Mutex
	initialized bool
}

// NewSpeakerOutput создает вывод; динамики инициализируются при первом треке
func NewSpeakerOutput() *SpeakerOutput {
	return &SpeakerOutput{}
}

// NewMedia создает медиаресурс; декодирование выполняется в фоне.
// Подходит в качестве MediaFactory.
func (o *SpeakerOutput) NewMedia(payload []byte, mimeType string, events Events) (Media, error) {
	m := &speakerMedia{
		output: o,
		events: events,
		level:  DefaultVolume,
		done:   make(chan struct{}),
	}
	go m.prepare(payload, mimeType)
	return m, nil
}

// Close освобождает звуковое устройство
func (o *SpeakerOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.initialized {
		speaker.Close()
		o.initialized = false
	}
}

// init инициализирует динамики (только один раз)
func (o *SpeakerOutput) init() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.initialized {
		return nil
	}
	if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("ошибка инициализации динамиков: %w", err)
	}
	o.initialized = true
	return nil
}

// speakerMedia - сессия воспроизведения через beep
type speakerMedia struct {
	output *SpeakerOutput
	events Events

	mu       sync.Mutex
	ready    bool
	closed   bool
	attached bool // поток добавлен в микшер динамиков
	wantPlay bool
	failure  error
	seekTo   time.Duration
	level    float64

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	done chan struct{}
}

func (m *speakerMedia) prepare(payload []byte, mimeType string) {
	streamer, format, err := metadata.Decode(payload, mimeType)
	if err != nil {
		m.fail(err)
		return
	}

	if err := m.output.init(); err != nil {
		streamer.Close()
		m.fail(err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		streamer.Close()
		return
	}

	m.streamer = streamer
	m.format = format
	m.ctrl = &beep.Ctrl{
		Streamer: beep.Resample(resampleQuality, format.SampleRate, speakerSampleRate, streamer),
		Paused:   !m.wantPlay,
	}
	m.volume = &effects.Volume{
		Streamer: m.ctrl,
		Base:     2,
	}
	m.applyVolume()
	if m.seekTo > 0 {
		m.seekStreamer(m.seekTo)
	}
	m.ready = true
	if m.wantPlay {
		m.attach()
	}
	duration := format.SampleRate.D(streamer.Len())
	m.mu.Unlock()

	go m.reportTime()
	m.events.OnReady(duration)
}

func (m *speakerMedia) fail(err error) {
	err = fmt.Errorf("%w: %w", data.ErrMedia, err)

	m.mu.Lock()
	m.failure = err
	closed := m.closed
	m.mu.Unlock()

	if !closed {
		m.events.OnError(err)
	}
}

// attach добавляет поток в микшер (должен вызываться под m.mu)
func (m *speakerMedia) attach() {
	if m.attached {
		return
	}
	m.attached = true
	speaker.Play(beep.Seq(m.volume, beep.Callback(func() {
		// Вызывается под блокировкой динамиков
		go m.ended()
	})))
}

func (m *speakerMedia) ended() {
	m.mu.Lock()
	m.attached = false
	closed := m.closed
	m.mu.Unlock()

	if !closed {
		m.events.OnEnded()
	}
}

// Play запускает или возобновляет воспроизведение; до готовности запоминает намерение
func (m *speakerMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errMediaClosed
	}
	if m.failure != nil {
		return m.failure
	}

	m.wantPlay = true
	if !m.ready {
		return nil
	}

	speaker.Lock()
	m.ctrl.Paused = false
	speaker.Unlock()
	m.attach()
	return nil
}

func (m *speakerMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wantPlay = false
	if !m.ready {
		return
	}

	speaker.Lock()
	m.ctrl.Paused = true
	speaker.Unlock()
}

func (m *speakerMedia) Seek(position time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		m.seekTo = position
		return
	}

	speaker.Lock()
	m.seekStreamer(position)
	speaker.Unlock()
}

// seekStreamer перематывает исходный поток (должен вызываться под m.mu)
func (m *speakerMedia) seekStreamer(position time.Duration) {
	sample := m.format.SampleRate.N(position)
	if last := m.streamer.Len() - 1; sample > last {
		sample = last
	}
	if sample < 0 {
		sample = 0
	}
	if err := m.streamer.Seek(sample); err != nil {
		log.Warn().Err(err).Dur("position", position).Msg("Seek failed")
	}
}

func (m *speakerMedia) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level = level
	if !m.ready {
		return
	}

	speaker.Lock()
	m.applyVolume()
	speaker.Unlock()
}

// applyVolume переводит линейную громкость в логарифмическую шкалу effects.Volume
func (m *speakerMedia) applyVolume() {
	if m.level <= 0 {
		m.volume.Silent = true
		m.volume.Volume = 0
		return
	}
	m.volume.Silent = false
	m.volume.Volume = math.Log2(m.level)
}

func (m *speakerMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)

	if !m.ready {
		return nil
	}

	speaker.Lock()
	// Поток без источника завершается, и микшер удаляет его
	m.ctrl.Streamer = nil
	speaker.Unlock()

	return m.streamer.Close()
}

// reportTime периодически сообщает позицию во время воспроизведения
func (m *speakerMedia) reportTime() {
	ticker := time.NewTicker(timeUpdateEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			playing := m.attached && m.wantPlay
			var position time.Duration
			if playing {
				speaker.Lock()
				position = m.format.SampleRate.D(m.streamer.Position())
				speaker.Unlock()
			}
			m.mu.Unlock()

			if playing {
				m.events.OnTime(position)
			}
		}
	}
}
