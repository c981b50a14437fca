// Package streaming содержит HTTP-ридер для загрузки аудио по ссылке
package streaming

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrTooLarge возвращается, если ответ превышает допустимый размер
var ErrTooLarge = errors.New("размер ответа превышает лимит")

// Reader представляет буферизованный поток для чтения данных порциями
type Reader struct {
	reader *bufio.Reader
	resp   *http.Response
}

// newClient создает HTTP клиент без общего таймаута, оставляя только таймауты соединения
func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       300 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// NewReader выполняет GET-запрос и возвращает ридер тела ответа
func NewReader(ctx context.Context, url string, bufferSize int) (*Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Accept-Encoding", "identity") // Размер должен соответствовать Content-Length
	req.Header.Set("User-Agent", "go-audiolib/1.0")

	resp, err := newClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, fmt.Errorf("ошибка HTTP: %s", resp.Status)
	}

	return &Reader{
		reader: bufio.NewReaderSize(resp.Body, bufferSize),
		resp:   resp,
	}, nil
}

// Read реализует интерфейс io.Reader
func (sr *Reader) Read(p []byte) (n int, err error) {
	return sr.reader.Read(p)
}

// Close закрывает соединение
func (sr *Reader) Close() error {
	return sr.resp.Body.Close()
}

// ContentType возвращает заголовок Content-Type ответа
func (sr *Reader) ContentType() string {
	return sr.resp.Header.Get("Content-Type")
}

// ContentLength возвращает заявленный размер ответа или -1
func (sr *Reader) ContentLength() int64 {
	return sr.resp.ContentLength
}

// ReadAll читает тело целиком, но не больше limit байт
func (sr *Reader) ReadAll(limit int64) ([]byte, error) {
	if length := sr.ContentLength(); length > limit {
		return nil, fmt.Errorf("%w: %d байт", ErrTooLarge, length)
	}

	payload, err := io.ReadAll(io.LimitReader(sr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if int64(len(payload)) > limit {
		return nil, fmt.Errorf("%w: больше %d байт", ErrTooLarge, limit)
	}
	return payload, nil
}
