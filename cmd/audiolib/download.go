package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/spf13/cobra"

	"github.com/hazadus/go-audiolib/internal/data"
	"github.com/hazadus/go-audiolib/internal/importer"
	"github.com/hazadus/go-audiolib/internal/utils"
)

var (
	videoURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`(?:youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`(?:youtube\.com/v/)([a-zA-Z0-9_-]{11})`),
	}
	videoIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	fileNameReplacer = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// createDownloadCommand создает команду download
func (app *Application) createDownloadCommand(ctx context.Context) *cobra.Command {
	var (
		flags trackFlags
		keep  bool
	)

	cmd := &cobra.Command{
		Use:   "download [YouTube URL]",
		Short: "Import the audio track of a YouTube video",
		Long: `Download the audio stream of a YouTube video and add it to the library.
With --keep a copy is also saved to the configured download directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			downloadCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			return app.downloadYouTubeAudio(downloadCtx, args[0], opts, keep)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&keep, "keep", "k", false, "also save the audio to download_dir")
	return cmd
}

// downloadYouTubeAudio скачивает аудиодорожку видео и импортирует ее
func (app *Application) downloadYouTubeAudio(ctx context.Context, url string, opts importer.Options, keep bool) error {
	videoID, err := extractVideoID(url)
	if err != nil {
		return err
	}

	if err := app.load(ctx); err != nil {
		return err
	}

	fmt.Fprintf(app.out, "📥 Скачиваем аудио для видео ID: %s\n", videoID)

	client := youtube.Client{}
	video, err := client.GetVideoContext(ctx, videoID)
	if err != nil {
		return fmt.Errorf("ошибка получения информации о видео: %w", err)
	}

	fmt.Fprintf(app.out, "   Название: %s\n", video.Title)
	fmt.Fprintf(app.out, "   Автор: %s\n", video.Author)

	format := findBestAudioFormat(video.Formats)
	if format == nil {
		return fmt.Errorf("аудиоформат webm не найден для видео %s", videoID)
	}

	stream, _, err := client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("ошибка получения потока: %w", err)
	}
	defer stream.Close()

	// Читаем на байт больше лимита, чтобы валидация отклонила слишком большой файл
	payload, err := io.ReadAll(io.LimitReader(stream, data.MaxFileSize+1))
	if err != nil {
		return fmt.Errorf("ошибка скачивания: %w", err)
	}
	fmt.Fprintf(app.out, "📊 Скачано: %s\n", utils.FormatFileSize(int64(len(payload))))

	file := &data.File{
		Name:     sanitizeFileName(video.Title) + ".webm",
		MimeType: data.MimeWebM,
		Size:     int64(len(payload)),
		Data:     payload,
	}

	if keep {
		if err := app.saveDownload(file); err != nil {
			return err
		}
	}

	if opts.Title == "" {
		opts.Title = truncateRunes(video.Title, data.MaxTitleLength)
	}
	if opts.Artist == "" {
		opts.Artist = truncateRunes(video.Author, data.MaxArtistLength)
	}

	created, err := app.Importer.Import(ctx, file, opts)
	if err != nil {
		return fmt.Errorf("ошибка добавления трека: %w", err)
	}

	fmt.Fprintf(app.out, "✅ Трек добавлен в библиотеку!\n")
	printTrack(app.out, created.Metadata())
	return nil
}

// saveDownload сохраняет копию скачанного аудио в download_dir
func (app *Application) saveDownload(file *data.File) error {
	if err := os.MkdirAll(app.Config.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	filePath := filepath.Join(app.Config.DownloadDir, file.Name)
	if err := os.WriteFile(filePath, file.Data, 0o644); err != nil {
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}

	fmt.Fprintf(app.out, "💾 Сохранено в файл: %s\n", filePath)
	return nil
}

// extractVideoID извлекает ID видео из различных форматов YouTube URL
func extractVideoID(url string) (string, error) {
	for _, re := range videoURLPatterns {
		if matches := re.FindStringSubmatch(url); len(matches) > 1 {
			return matches[1], nil
		}
	}

	// Если это просто ID видео (11 символов)
	if videoIDPattern.MatchString(url) {
		return url, nil
	}

	return "", fmt.Errorf("не удалось извлечь ID видео из URL: %s", url)
}

// findBestAudioFormat выбирает аудиоформат webm с наибольшим битрейтом
func findBestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		format := &formats[i]
		if !strings.HasPrefix(format.MimeType, data.MimeWebM) || format.AudioChannels == 0 {
			continue
		}
		if best == nil || format.Bitrate > best.Bitrate {
			best = format
		}
	}
	return best
}

// sanitizeFileName очищает имя файла от недопустимых символов
func sanitizeFileName(name string) string {
	name = fileNameReplacer.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = truncateRunes(name, 200)
	if name == "" {
		return "audio"
	}
	return name
}

// truncateRunes обрезает строку до limit символов без многоточия
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
