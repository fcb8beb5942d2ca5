package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/config"
)

func TestNewS3LabelArchive_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3LabelArchive(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{
			AccessKey: "test-key",
			SecretKey: "test-secret",
		}
		_, err := NewS3LabelArchive(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			SecretKey: "test-secret",
		}
		_, err := NewS3LabelArchive(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			AccessKey: "test-key",
		}
		_, err := NewS3LabelArchive(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates archive", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:            "test-bucket",
			AccessKey:         "test-key",
			SecretKey:         "test-secret",
			Region:            "us-east-1",
			Endpoint:          "http://localhost:9000",
			UsePathStyle:      true,
			PresignExpiration: time.Hour,
		}
		archive, err := NewS3LabelArchive(cfg)
		require.NoError(t, err)
		require.NotNil(t, archive)
		assert.Equal(t, "test-bucket", archive.GetBucket())
		assert.Equal(t, time.Hour, archive.presignExpiration)
	})

	t.Run("adds http prefix when missing and no SSL", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			AccessKey: "test-key",
			SecretKey: "test-secret",
			Endpoint:  "localhost:9000",
			UseSSL:    false,
		}
		archive, err := NewS3LabelArchive(cfg)
		require.NoError(t, err)
		require.NotNil(t, archive)
	})

	t.Run("default presign expiration is 24 hours", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			AccessKey: "test-key",
			SecretKey: "test-secret",
			Endpoint:  "http://localhost:9000",
		}
		archive, err := NewS3LabelArchive(cfg)
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, archive.presignExpiration)
	})
}

func TestS3LabelArchiveOptions(t *testing.T) {
	baseConfig := &config.StorageConfig{
		Bucket:    "test-bucket",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  "http://localhost:9000",
	}

	t.Run("WithLogger sets custom logger", func(t *testing.T) {
		archive, err := NewS3LabelArchive(baseConfig, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.NotNil(t, archive.logger)
	})

	t.Run("WithPresignExpiration sets custom duration", func(t *testing.T) {
		archive, err := NewS3LabelArchive(baseConfig, WithPresignExpiration(15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, archive.presignExpiration)
	})
}

func TestLabelKey(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	assert.Equal(t,
		"labels/11111111-2222-3333-4444-555555555555/1Z999AA10123456784.gif",
		labelKey(id, "1Z999AA10123456784", "GIF"))
	assert.Equal(t,
		"labels/11111111-2222-3333-4444-555555555555/794892427712.png",
		labelKey(id, "794892427712", "png"))
	assert.Equal(t,
		"labels/11111111-2222-3333-4444-555555555555/794892427712.bin",
		labelKey(id, "794892427712", ""))
}

func TestLabelContentType(t *testing.T) {
	assert.Equal(t, "image/gif", labelContentType("GIF"))
	assert.Equal(t, "image/png", labelContentType("png"))
	assert.Equal(t, "application/pdf", labelContentType("pdf"))
	assert.Equal(t, "application/octet-stream", labelContentType("zpl"))
}

func TestS3LabelArchive_StoreLabel_ValidationOnly(t *testing.T) {
	cfg := &config.StorageConfig{
		Bucket:    "test-bucket",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  "http://localhost:9000",
	}
	archive, err := NewS3LabelArchive(cfg)
	require.NoError(t, err)

	t.Run("empty tracking number returns error", func(t *testing.T) {
		_, err := archive.StoreLabel(context.Background(), uuid.New(), "", "gif", []byte("label"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracking number is required")
	})

	t.Run("empty image returns error", func(t *testing.T) {
		_, err := archive.StoreLabel(context.Background(), uuid.New(), "1Z999AA10123456784", "gif", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "label image is empty")
	})
}

func TestS3LabelArchive_LabelURL(t *testing.T) {
	cfg := &config.StorageConfig{
		Bucket:            "test-bucket",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Endpoint:          "http://localhost:9000",
		UsePathStyle:      true,
		PresignExpiration: time.Hour,
	}
	archive, err := NewS3LabelArchive(cfg)
	require.NoError(t, err)

	t.Run("empty tracking number returns error", func(t *testing.T) {
		url, err := archive.LabelURL(context.Background(), uuid.New(), "", "gif")
		require.Error(t, err)
		assert.Empty(t, url)
	})

	t.Run("generates presigned URL with label key", func(t *testing.T) {
		id := uuid.New()
		url, err := archive.LabelURL(context.Background(), id, "1Z999AA10123456784", "gif")
		require.NoError(t, err)
		assert.True(t, strings.Contains(url, "localhost:9000"))
		assert.True(t, strings.Contains(url, "test-bucket"))
		assert.True(t, strings.Contains(url, "1Z999AA10123456784.gif"))
	})
}

func TestS3LabelArchive_DeleteLabel_ValidationOnly(t *testing.T) {
	cfg := &config.StorageConfig{
		Bucket:    "test-bucket",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  "http://localhost:9000",
	}
	archive, err := NewS3LabelArchive(cfg)
	require.NoError(t, err)

	err = archive.DeleteLabel(context.Background(), uuid.New(), "", "gif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracking number is required")
}
