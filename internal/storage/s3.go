// Package storage uploads user media to an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/config"
	prommetrics "github.com/rowquest/rowquest-api/internal/metrics"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

// Upload kinds, used as the first segment of the object key.
const (
	KindAvatar = "avatars"
)

// ObjectAPI is the subset of the S3 client used by the uploader.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Uploader stores objects and returns their public URLs.
type Uploader struct {
	client        ObjectAPI
	bucket        string
	publicBaseURL string
	log           *logger.Logger
}

// NewUploader creates an uploader backed by an S3 client built from config.
func NewUploader(cfg *config.StorageConfig, log *logger.Logger) *Uploader {
	client := s3.New(s3.Options{
		BaseEndpoint: endpoint(cfg.Endpoint),
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		Region:       cfg.Region,
		UsePathStyle: cfg.Endpoint != "",
	})

	return NewUploaderWithClient(client, cfg.Bucket, cfg.PublicBaseURL, log)
}

// NewUploaderWithClient creates an uploader around an existing client (useful for testing).
func NewUploaderWithClient(client ObjectAPI, bucket, publicBaseURL string, log *logger.Logger) *Uploader {
	return &Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
	}
}

// Upload writes body under "<kind>/<userID>/<uuid><ext>" and returns the public URL.
func (u *Uploader) Upload(ctx context.Context, kind string, userID uint, filename, contentType string, body io.Reader) (string, error) {
	key := ObjectKey(kind, userID, filename)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		prommetrics.RecordUpload(kind, "error")
		return "", apperrors.Remote("storage.upload", fmt.Errorf("failed to upload %s: %w", key, err))
	}

	prommetrics.RecordUpload(kind, "success")
	u.log.Info().
		Str("bucket", u.bucket).
		Str("key", key).
		Uint("user_id", userID).
		Msg("Uploaded object")

	return u.URL(key), nil
}

// Delete removes an object previously returned by Upload. URLs outside the bucket are ignored.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	key, ok := u.KeyFromURL(url)
	if !ok {
		return nil
	}

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperrors.Remote("storage.delete", fmt.Errorf("failed to delete %s: %w", key, err))
	}
	return nil
}

// URL returns the public URL of an object key.
func (u *Uploader) URL(key string) string {
	return u.publicBaseURL + "/" + key
}

// KeyFromURL reverses URL.
func (u *Uploader) KeyFromURL(url string) (string, bool) {
	prefix := u.publicBaseURL + "/"
	if url == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// ObjectKey builds a collision-free key for an upload.
func ObjectKey(kind string, userID uint, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d/%s%s", kind, userID, uuid.NewString(), ext)
}

func endpoint(raw string) *string {
	if raw == "" {
		return nil
	}
	return aws.String(raw)
}
