package infrastructure

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	// Registers the mem:// scheme for bucket_url
	_ "gocloud.dev/blob/memblob"

	"github.com/yourusername/dl-client/internal/domain"
	"github.com/yourusername/dl-client/pkg/disposition"
)

// maxNameAttempts bounds the search for a free artifact name
const maxNameAttempts = 1000

// ArtifactStore saves downloaded artifacts into a blob bucket, which is a
// local directory unless a bucket URL is configured
type ArtifactStore struct {
	bucket   *blob.Bucket
	location string
	fallback string
	logger   *zap.Logger
}

// OpenArtifactStore opens the bucket described by config
func OpenArtifactStore(ctx context.Context, config *domain.OutputConfig, fallback string, logger *zap.Logger) (*ArtifactStore, error) {
	if config.BucketURL != "" {
		bucket, err := blob.OpenBucket(ctx, config.BucketURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bucket %s: %w", config.BucketURL, err)
		}
		store := NewArtifactStore(bucket, fallback, logger)
		store.location = config.BucketURL
		return store, nil
	}

	bucket, err := fileblob.OpenBucket(config.Dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open output directory %s: %w", config.Dir, err)
	}
	store := NewArtifactStore(bucket, fallback, logger)
	store.location = config.Dir
	return store, nil
}

// NewArtifactStore wraps an open bucket. fallback names artifacts whose
// name does not survive sanitizing.
func NewArtifactStore(bucket *blob.Bucket, fallback string, logger *zap.Logger) *ArtifactStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == "" {
		fallback = domain.DefaultConfig().Lifecycle.DefaultFilename
	}
	return &ArtifactStore{
		bucket:   bucket,
		fallback: fallback,
		logger:   logger,
	}
}

// Save writes data under a sanitized form of name and returns the key used.
// An existing artifact is never overwritten; "clip.mp4" becomes
// "clip (1).mp4" and so on.
func (s *ArtifactStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	name = disposition.Sanitize(name)
	if name == "" {
		name = s.fallback
	}

	key, err := s.freeKey(ctx, name)
	if err != nil {
		return "", err
	}

	opts := &blob.WriterOptions{ContentType: contentType(key)}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		s.logger.Error("Failed to write artifact",
			zap.String("key", key),
			zap.String("code", gcerrors.Code(err).String()),
			zap.Error(err))
		return "", fmt.Errorf("failed to write artifact %s: %w", key, err)
	}

	s.logger.Debug("Artifact saved", zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

// Location returns a human-readable location of key
func (s *ArtifactStore) Location(key string) string {
	if s.location == "" {
		return key
	}
	if strings.HasSuffix(s.location, "/") {
		return s.location + key
	}
	return s.location + "/" + key
}

// Close closes the underlying bucket
func (s *ArtifactStore) Close() error {
	return s.bucket.Close()
}

// freeKey returns name, or name with the first free numeric suffix
func (s *ArtifactStore) freeKey(ctx context.Context, name string) (string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// Dotfiles like ".mp4" keep the whole name as base
		base, ext = name, ""
	}

	for i := 0; i < maxNameAttempts; i++ {
		key := name
		if i > 0 {
			key = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}

		exists, err := s.bucket.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to check artifact %s: %w", key, err)
		}
		if !exists {
			return key, nil
		}
	}

	return "", fmt.Errorf("no free name for artifact %s", name)
}

func contentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
