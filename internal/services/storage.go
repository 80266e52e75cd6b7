package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/config"
	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

// ImageStore saves uploaded images and returns their public URL.
type ImageStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, imageURL string) error
}

// NewImageStore picks S3 when AWS credentials are configured and the local
// upload directory otherwise.
func NewImageStore(cfg config.StorageConfig, baseURL string) (ImageStore, error) {
	if cfg.UseS3() {
		return NewS3ImageStore(cfg)
	}
	return NewLocalImageStore(cfg.UploadDir, baseURL)
}

type S3ImageStore struct {
	bucket   string
	region   string
	client   *s3.S3
	uploader *s3manager.Uploader
}

func NewS3ImageStore(cfg config.StorageConfig) (*S3ImageStore, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not configured")
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.AWSRegion),
		Credentials: credentials.NewStaticCredentials(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3ImageStore{
		bucket:   cfg.S3Bucket,
		region:   cfg.AWSRegion,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func (s *S3ImageStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *S3ImageStore) Delete(ctx context.Context, imageURL string) error {
	u, err := url.Parse(imageURL)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	return err
}

// LocalImageStore writes images under dir and serves them from /uploads.
type LocalImageStore struct {
	dir     string
	baseURL string
}

func NewLocalImageStore(dir, baseURL string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalImageStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalImageStore) Dir() string {
	return s.dir
}

func (s *LocalImageStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return s.baseURL + "/uploads/" + key, nil
}

func (s *LocalImageStore) Delete(_ context.Context, imageURL string) error {
	prefix := s.baseURL + "/uploads/"
	if !strings.HasPrefix(imageURL, prefix) {
		return nil
	}
	key := strings.TrimPrefix(imageURL, prefix)
	if strings.Contains(key, "..") {
		return fmt.Errorf("invalid image path")
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// UploadImage checks that file is an image within the size limit and stores
// it under folder.
func UploadImage(ctx context.Context, images ImageStore, file *multipart.FileHeader, folder string) (string, error) {
	if file.Size > MaxImageSize {
		return "", apperr.Validation("Image must be 5MB or smaller")
	}

	src, err := file.Open()
	if err != nil {
		return "", apperr.Internal("failed to open file", err)
	}
	defer src.Close()

	body, err := io.ReadAll(io.LimitReader(src, MaxImageSize+1))
	if err != nil {
		return "", apperr.Internal("failed to read file", err)
	}
	if len(body) > MaxImageSize {
		return "", apperr.Validation("Image must be 5MB or smaller")
	}

	contentType := http.DetectContentType(body)
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation("Only image uploads are allowed")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)
	imageURL, err := images.Put(ctx, key, body, contentType)
	if err != nil {
		return "", apperr.Internal("failed to store image", err)
	}
	return imageURL, nil
}
