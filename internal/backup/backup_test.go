package backup

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/hazadus/go-audiolib/internal/data"
)

// MockS3Uploader мок для S3 uploader
type MockS3Uploader struct {
	uploadFunc func(input *s3manager.UploadInput) (*s3manager.UploadOutput, error)
}

func (m *MockS3Uploader) UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return m.uploadFunc(input)
}

// MockS3Client мок для S3 клиента
type MockS3Client struct {
	deleteObjectFunc func(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
	keys             []string
	listErr          error
}

func (m *MockS3Client) DeleteObjectWithContext(ctx aws.Context, input *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error) {
	return m.deleteObjectFunc(input)
}

func (m *MockS3Client) ListObjectsV2PagesWithContext(ctx aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error {
	if m.listErr != nil {
		return m.listErr
	}
	// Каждый ключ отдается отдельной страницей
	for i, key := range m.keys {
		page := &s3.ListObjectsV2Output{Contents: []*s3.Object{{Key: aws.String(key)}}}
		if !fn(page, i == len(m.keys)-1) {
			break
		}
	}
	return nil
}

// memoryBucket запоминает загруженные объекты
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string
	failKey string
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (b *memoryBucket) uploader() *MockS3Uploader {
	return &MockS3Uploader{
		uploadFunc: func(input *s3manager.UploadInput) (*s3manager.UploadOutput, error) {
			key := aws.StringValue(input.Key)
			if key == b.failKey {
				return nil, awserr.New("RequestTimeout", "Request timeout", nil)
			}
			body, err := io.ReadAll(input.Body)
			if err != nil {
				return nil, err
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			b.objects[key] = body
			b.types[key] = aws.StringValue(input.ContentType)
			return &s3manager.UploadOutput{}, nil
		},
	}
}

func (b *memoryBucket) client(existing ...string) *MockS3Client {
	return &MockS3Client{
		keys: existing,
		deleteObjectFunc: func(input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.deleted = append(b.deleted, aws.StringValue(input.Key))
			return &s3.DeleteObjectOutput{}, nil
		},
	}
}

// fakeSource - каталог в памяти
type fakeSource struct {
	tracks []data.TrackMetadata
	blobs  map[string]*data.Blob
}

func (s *fakeSource) ListTracks() []data.TrackMetadata {
	return s.tracks
}

func (s *fakeSource) Blob(_ context.Context, id string) (*data.Blob, error) {
	blob, ok := s.blobs[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	return blob, nil
}

func testConfig() *Config {
	return &Config{
		Region:     "us-east-1",
		AccessKey:  "test-access-key",
		SecretKey:  "test-secret-key",
		Endpoint:   "https://s3.example.com",
		BucketName: "test-bucket",
	}
}

func testSource() *fakeSource {
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	return &fakeSource{
		tracks: []data.TrackMetadata{
			{ID: "t1", Title: "First", Artist: "Artist", Duration: 120, Category: data.CategoryRock, CreatedAt: created},
			{ID: "t2", Title: "Second", Artist: "Artist", Duration: 60, Category: data.CategoryJazz, CreatedAt: created},
		},
		blobs: map[string]*data.Blob{
			"t1": {ID: "t1", MimeType: data.MimeMPEG, Data: []byte("mp3 data")},
			"t2": {ID: "t2", MimeType: data.MimeOGG, Data: []byte("ogg")},
		},
	}
}

func TestUploadFile(t *testing.T) {
	bucket := newMemoryBucket()
	uploader := &Uploader{s3Uploader: bucket.uploader(), s3Client: bucket.client(), config: testConfig()}

	url, err := uploader.UploadFile(context.Background(), strings.NewReader("test content"), "test-file.mp3", data.MimeMPEG)
	if err != nil {
		t.Fatalf("Неожиданная ошибка при загрузке: %v", err)
	}

	expectedURL := "https://s3.example.com/test-bucket/test-file.mp3"
	if url != expectedURL {
		t.Errorf("Ожидался URL: %s, получено: %s", expectedURL, url)
	}
	if string(bucket.objects["test-file.mp3"]) != "test content" {
		t.Errorf("Ожидалось содержимое: test content, получено: %s", bucket.objects["test-file.mp3"])
	}
	if bucket.types["test-file.mp3"] != data.MimeMPEG {
		t.Errorf("Ожидался Content-Type %s, получено %s", data.MimeMPEG, bucket.types["test-file.mp3"])
	}
}

func TestUploadErrorHandling(t *testing.T) {
	bucket := newMemoryBucket()
	bucket.failKey = "test-file.mp3"
	uploader := &Uploader{s3Uploader: bucket.uploader(), s3Client: bucket.client(), config: testConfig()}

	_, err := uploader.UploadFile(context.Background(), strings.NewReader("x"), "test-file.mp3", "")
	if err == nil {
		t.Fatal("Ожидалась ошибка при сетевой проблеме")
	}
	if !strings.Contains(err.Error(), "ошибка загрузки") {
		t.Errorf("Неожиданное сообщение об ошибке: %v", err)
	}
}

func TestObjectURLWithoutEndpoint(t *testing.T) {
	config := testConfig()
	config.Endpoint = ""
	uploader := &Uploader{config: config}

	expected := "https://test-bucket.s3.us-east-1.amazonaws.com/library.yaml"
	if got := uploader.objectURL(ManifestKey); got != expected {
		t.Errorf("Ожидался URL %s, получено %s", expected, got)
	}
}

func TestNewUploaderRequiresBucket(t *testing.T) {
	config := testConfig()
	config.BucketName = ""

	if _, err := NewUploader(config); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Ожидалась ErrNotConfigured, получено %v", err)
	}
}

func TestExport(t *testing.T) {
	bucket := newMemoryBucket()
	uploader := &Uploader{s3Uploader: bucket.uploader(), s3Client: bucket.client(), config: testConfig()}
	exporter := NewExporter(uploader, testSource())

	var reported []string
	result, err := exporter.Export(context.Background(), false, func(m data.TrackMetadata) {
		reported = append(reported, m.ID)
	})
	if err != nil {
		t.Fatalf("Ошибка выгрузки: %v", err)
	}

	if result.Uploaded != 2 || result.Bytes != int64(len("mp3 data")+len("ogg")) {
		t.Errorf("Неожиданный итог: %+v", result)
	}
	if len(reported) != 2 {
		t.Errorf("Ожидалось 2 уведомления о треках, получено %d", len(reported))
	}
	if string(bucket.objects["tracks/t1.mp3"]) != "mp3 data" {
		t.Errorf("Аудио t1 не выгружено")
	}
	if _, ok := bucket.objects["tracks/t2.ogg"]; !ok {
		t.Errorf("Аудио t2 не выгружено")
	}

	manifest, err := ParseManifest(bucket.objects[ManifestKey])
	if err != nil {
		t.Fatalf("Ошибка разбора манифеста: %v", err)
	}
	if manifest.Version != 1 || len(manifest.Tracks) != 2 {
		t.Fatalf("Неожиданный манифест: %+v", manifest)
	}
	first := manifest.Tracks[0]
	if first.ID != "t1" || first.Title != "First" || first.Key != "tracks/t1.mp3" || first.Size != 8 {
		t.Errorf("Неожиданная запись манифеста: %+v", first)
	}
	if first.Category != data.CategoryRock || !first.CreatedAt.Equal(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("Метаданные в манифесте искажены: %+v", first.TrackMetadata)
	}
}

func TestExportPrune(t *testing.T) {
	bucket := newMemoryBucket()
	client := bucket.client("tracks/t1.mp3", "tracks/gone.mp3", "tracks/old.wav")
	uploader := &Uploader{s3Uploader: bucket.uploader(), s3Client: client, config: testConfig()}

	result, err := NewExporter(uploader, testSource()).Export(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("Ошибка выгрузки: %v", err)
	}

	sort.Strings(bucket.deleted)
	if result.Removed != 2 || strings.Join(bucket.deleted, ",") != "tracks/gone.mp3,tracks/old.wav" {
		t.Errorf("Ожидалось удаление 2 устаревших объектов, удалено %v", bucket.deleted)
	}
}

func TestExportStopsOnUploadError(t *testing.T) {
	bucket := newMemoryBucket()
	bucket.failKey = "tracks/t2.ogg"
	uploader := &Uploader{s3Uploader: bucket.uploader(), s3Client: bucket.client(), config: testConfig()}

	result, err := NewExporter(uploader, testSource()).Export(context.Background(), false, nil)
	if err == nil || !strings.Contains(err.Error(), "t2") {
		t.Fatalf("Ожидалась ошибка выгрузки t2, получено %v", err)
	}
	if result.Uploaded != 1 {
		t.Errorf("Ожидалась 1 выгрузка до ошибки, получено %d", result.Uploaded)
	}
	if _, ok := bucket.objects[ManifestKey]; ok {
		t.Error("Манифест не должен выгружаться после ошибки")
	}
}

func TestObjectKey(t *testing.T) {
	tests := map[string]string{
		data.MimeMPEG:              "tracks/id.mp3",
		data.MimeWAV:               "tracks/id.wav",
		"audio/ogg; codecs=vorbis": "tracks/id.ogg",
		data.MimeWebM:              "tracks/id.webm",
		"application/octet-stream": "tracks/id.bin",
	}

	for mime, expected := range tests {
		if got := ObjectKey("id", mime); got != expected {
			t.Errorf("ObjectKey(%s) = %s, ожидалось %s", mime, got, expected)
		}
	}
}
