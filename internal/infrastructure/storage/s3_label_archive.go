// Package storage provides object storage implementations for label archival.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/application/shipping"
	infraconfig "github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/config"
)

// Ensure S3LabelArchive implements LabelArchive
var _ shipping.LabelArchive = (*S3LabelArchive)(nil)

// S3LabelArchive stores purchased label images in S3-compatible object
// storage (AWS S3, MinIO, RustFS, etc.). Carriers only retain label images
// for a limited window, so every purchased label is archived immediately.
type S3LabelArchive struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// S3LabelArchiveOption is a functional option for configuring S3LabelArchive
type S3LabelArchiveOption func(*S3LabelArchive)

// WithLogger sets a custom logger for S3LabelArchive
func WithLogger(logger *zap.Logger) S3LabelArchiveOption {
	return func(s *S3LabelArchive) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3LabelArchiveOption {
	return func(s *S3LabelArchive) {
		s.presignExpiration = d
	}
}

// NewS3LabelArchive creates a new S3LabelArchive from configuration.
// It supports any S3-compatible storage backend.
func NewS3LabelArchive(cfg *infraconfig.StorageConfig, opts ...S3LabelArchiveOption) (*S3LabelArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	archive := &S3LabelArchive{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(archive)
	}

	if archive.presignExpiration == 0 {
		archive.presignExpiration = 24 * time.Hour
	}

	return archive, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3LabelArchive) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("creating label archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (startup race)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// labelKey builds the object key for an archived label image
func labelKey(connectionID uuid.UUID, trackingNumber, format string) string {
	ext := strings.ToLower(format)
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("labels/%s/%s.%s", connectionID, trackingNumber, ext)
}

// labelContentType maps a label format to its MIME type
func labelContentType(format string) string {
	switch strings.ToLower(format) {
	case "gif":
		return "image/gif"
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// StoreLabel uploads a label image and returns a presigned download URL
// valid for the configured expiration.
func (s *S3LabelArchive) StoreLabel(ctx context.Context, connectionID uuid.UUID, trackingNumber, format string, image []byte) (string, error) {
	if trackingNumber == "" {
		return "", errors.New("tracking number is required")
	}
	if len(image) == 0 {
		return "", errors.New("label image is empty")
	}

	key := labelKey(connectionID, trackingNumber, format)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String(labelContentType(format)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive label: %w", err)
	}

	s.logger.Debug("label archived",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(image)))

	return s.LabelURL(ctx, connectionID, trackingNumber, format)
}

// LabelURL generates a presigned download URL for an archived label
func (s *S3LabelArchive) LabelURL(ctx context.Context, connectionID uuid.UUID, trackingNumber, format string) (string, error) {
	if trackingNumber == "" {
		return "", errors.New("tracking number is required")
	}

	key := labelKey(connectionID, trackingNumber, format)
	presignReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to generate label URL: %w", err)
	}

	return presignReq.URL, nil
}

// DeleteLabel removes an archived label, used when a label is voided
func (s *S3LabelArchive) DeleteLabel(ctx context.Context, connectionID uuid.UUID, trackingNumber, format string) error {
	if trackingNumber == "" {
		return errors.New("tracking number is required")
	}

	key := labelKey(connectionID, trackingNumber, format)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete archived label: %w", err)
	}
	return nil
}

// LabelExists checks whether a label has been archived
func (s *S3LabelArchive) LabelExists(ctx context.Context, connectionID uuid.UUID, trackingNumber, format string) (bool, error) {
	if trackingNumber == "" {
		return false, errors.New("tracking number is required")
	}

	key := labelKey(connectionID, trackingNumber, format)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// Some S3-compatible services report missing keys differently
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check label existence: %w", err)
	}

	return true, nil
}

// GetBucket returns the bucket name
func (s *S3LabelArchive) GetBucket() string {
	return s.bucket
}
