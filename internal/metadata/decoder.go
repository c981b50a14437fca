package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/hazadus/go-audiolib/internal/data"
)

// ErrNoDecoder возвращается для форматов, которые нельзя декодировать локально
var ErrNoDecoder = errors.New("нет декодера для формата")

// byteSource позволяет декодерам читать и перематывать данные в памяти
type byteSource struct {
	*bytes.Reader
}

func (byteSource) Close() error {
	return nil
}

// Decode открывает поток PCM для аудиоданных указанного MIME-типа
func Decode(payload []byte, mimeType string) (beep.StreamSeekCloser, beep.Format, error) {
	src := byteSource{bytes.NewReader(payload)}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch data.NormalizeMimeType(mimeType) {
	case data.MimeMPEG, "audio/mp3":
		streamer, format, err = mp3.Decode(src)
	case data.MimeWAV, "audio/x-wav", "audio/wave":
		streamer, format, err = wav.Decode(src)
	case data.MimeOGG, "audio/vorbis":
		streamer, format, err = vorbis.Decode(src)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrNoDecoder, mimeType)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %w", data.ErrDecode, err)
	}
	return streamer, format, nil
}

// defaultTimecodeScale - длительность одного тика Matroska по умолчанию
const defaultTimecodeScale = uint64(time.Millisecond)

// webmHeader - часть заголовка Matroska/WebM с длительностью сегмента
type webmHeader struct {
	Segment struct {
		Info struct {
			TimecodeScale uint64  `ebml:"TimecodeScale,omitempty"`
			Duration      float64 `ebml:"Duration,omitempty"` // В тиках TimecodeScale
		} `ebml:"Info"`
	} `ebml:"Segment"`
}

// WebMDuration читает длительность из элемента Segment/Info/Duration.
// WebM не воспроизводится локально, но его длительность известна из заголовка.
func WebMDuration(payload []byte) (time.Duration, error) {
	var header webmHeader
	err := ebml.Unmarshal(bytes.NewReader(payload), &header, ebml.WithIgnoreUnknown(true))

	info := header.Segment.Info
	if info.Duration <= 0 {
		if err != nil {
			return 0, fmt.Errorf("%w: %w", data.ErrDecode, err)
		}
		return 0, fmt.Errorf("%w: в заголовке webm нет длительности", ErrNoDecoder)
	}

	scale := info.TimecodeScale
	if scale == 0 {
		scale = defaultTimecodeScale
	}
	return time.Duration(info.Duration * float64(scale)), nil
}

// DurationDecoder вычисляет длительность аудио без воспроизведения
type DurationDecoder struct{}

// DecodeDuration возвращает длительность аудиоданных
func (DurationDecoder) DecodeDuration(payload []byte, mimeType string) (time.Duration, error) {
	if data.NormalizeMimeType(mimeType) == data.MimeWebM {
		return WebMDuration(payload)
	}

	streamer, format, err := Decode(payload, mimeType)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}
