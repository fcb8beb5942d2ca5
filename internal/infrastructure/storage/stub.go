// Package storage provides object storage implementations for label archival.
package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/application/shipping"
)

// StubLabelArchive is an in-memory placeholder implementation of
// LabelArchive. Use this for development until a real storage backend
// (S3, MinIO, etc.) is configured.
type StubLabelArchive struct {
	// BaseURL is the base URL for generated label URLs
	// Defaults to "https://storage.example.com" if not set
	BaseURL string

	mu     sync.Mutex
	labels map[string][]byte
}

// NewStubLabelArchive creates a new StubLabelArchive
func NewStubLabelArchive() *StubLabelArchive {
	return &StubLabelArchive{
		BaseURL: "https://storage.example.com",
		labels:  make(map[string][]byte),
	}
}

// Ensure StubLabelArchive implements LabelArchive
var _ shipping.LabelArchive = (*StubLabelArchive)(nil)

// StoreLabel keeps the image in memory and returns a deterministic URL
func (s *StubLabelArchive) StoreLabel(ctx context.Context, connectionID uuid.UUID, trackingNumber, format string, image []byte) (string, error) {
	if trackingNumber == "" {
		return "", errors.New("tracking number is required")
	}
	if len(image) == 0 {
		return "", errors.New("label image is empty")
	}

	key := labelKey(connectionID, trackingNumber, format)

	s.mu.Lock()
	s.labels[key] = image
	s.mu.Unlock()

	return s.BaseURL + "/" + key, nil
}

// Label returns an archived image, for test assertions
func (s *StubLabelArchive) Label(connectionID uuid.UUID, trackingNumber, format string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.labels[labelKey(connectionID, trackingNumber, format)]
	return image, ok
}
