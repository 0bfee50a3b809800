package services

import (
	"net/http"
	"time"

	"cloud.google.com/go/storage"
)

// MediaSigner turns a stored object path into a URL the client can fetch.
// Avatar and cover paths are stored as bucket-relative paths and decorated
// at response time, never persisted as URLs.
type MediaSigner interface {
	SignURL(path string) (string, error)
}

// GCSMediaSigner signs paths against the configured bucket with V4 signed
// URLs.
type GCSMediaSigner struct {
	bucket *storage.BucketHandle
	ttl    time.Duration
}

// NewGCSMediaSigner creates a signer with a fixed URL lifetime
func NewGCSMediaSigner(bucket *storage.BucketHandle) *GCSMediaSigner {
	return &GCSMediaSigner{bucket: bucket, ttl: 15 * time.Minute}
}

// SignURL signs one object path; empty paths pass through unsigned
func (s *GCSMediaSigner) SignURL(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return s.bucket.SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(s.ttl),
	})
}

// PassthroughSigner returns paths unchanged. Used when no media bucket is
// configured, typically in development.
type PassthroughSigner struct{}

func (PassthroughSigner) SignURL(path string) (string, error) {
	return path, nil
}
