// Package backup выгружает библиотеку треков в S3-совместимое хранилище
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ErrNotConfigured возвращается, если не задан bucket
var ErrNotConfigured = errors.New("S3 не настроен: укажите aws_bucket_name")

// Config содержит настройки для S3
type Config struct {
	Region     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	BucketName string
}

// objectUploader - часть s3manager.Uploader, используемая для загрузки
type objectUploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// objectClient - часть клиента S3 для удаления и перечисления объектов
type objectClient interface {
	DeleteObjectWithContext(ctx aws.Context, input *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error)
	ListObjectsV2PagesWithContext(ctx aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error
}

// Uploader обертка для S3 uploader
type Uploader struct {
	s3Uploader objectUploader
	s3Client   objectClient
	config     *Config
}

// NewUploader создает новый S3 uploader
func NewUploader(config *Config) (*Uploader, error) {
	if config.BucketName == "" {
		return nil, ErrNotConfigured
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
	}

	// Для S3-совместимых хранилищ используется адресация по пути
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AWS сессии: %w", err)
	}

	return &Uploader{
		s3Uploader: s3manager.NewUploader(sess),
		s3Client:   s3.New(sess),
		config:     config,
	}, nil
}

// UploadFile загружает объект в S3 и возвращает его URL
func (u *Uploader) UploadFile(ctx context.Context, reader io.Reader, key, contentType string) (string, error) {
	input := &s3manager.UploadInput{
		Bucket: aws.String(u.config.BucketName),
		Key:    aws.String(key),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := u.s3Uploader.UploadWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("ошибка загрузки: %w", err)
	}

	return u.objectURL(key), nil
}

// DeleteFile удаляет объект из S3
func (u *Uploader) DeleteFile(ctx context.Context, key string) error {
	_, err := u.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления файла из S3: %w", err)
	}
	return nil
}

// ListKeys возвращает ключи всех объектов с префиксом
func (u *Uploader) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := u.s3Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.config.BucketName),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка объектов: %w", err)
	}
	return keys, nil
}

// objectURL формирует URL объекта
func (u *Uploader) objectURL(key string) string {
	if u.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", u.config.Endpoint, u.config.BucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.config.BucketName, u.config.Region, key)
}
