// Package gcs is the production objectstore.Store adapter, backed by
// Google Cloud Storage (or the fake-gcs-server emulator in dev).
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore"
)

type store struct {
	log    *logger.Logger
	client *storage.Client
	mode   Mode
}

func New(log *logger.Logger) (objectstore.Store, error) {
	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(log, cfg)
}

func NewWithConfig(log *logger.Logger, cfg Config) (objectstore.Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx := context.Background()
	var client *storage.Client
	var err error
	switch cfg.Mode {
	case ModeGCS:
		opts := append(clientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
		client, err = storage.NewClient(ctx, opts...)
	case ModeGCSEmulator:
		endpoint := strings.TrimRight(cfg.EmulatorHost, "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		client, err = storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unsupported mode %q", cfg.Mode)}
	}
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	log.With("service", "gcs.Store").Info("object store initialized", "mode", cfg.Mode)
	return &store{log: log.With("service", "gcs.Store"), client: client, mode: cfg.Mode}, nil
}

func (s *store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, &objectstore.ErrObjectFetchError{Bucket: bucket, Key: key, Err: err}
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *store) Head(ctx context.Context, bucket, key string) (objectstore.ObjectMeta, error) {
	attrs, err := s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		return objectstore.ObjectMeta{}, &objectstore.ErrObjectFetchError{Bucket: bucket, Key: key, Err: err}
	}
	return objectstore.ObjectMeta{
		ETag:        attrs.Etag,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ModifiedAt:  attrs.Updated,
	}, nil
}

func (s *store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (s *store) Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write: %w", err)
	}
	return w.Close()
}

func (s *store) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.Bucket(bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("gcs delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *store) PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}
	return s.client.Bucket(bucket).SignedURL(key, opts)
}

// Subscribe polls the bucket at a fixed interval, diffing the observed key
// set against what it has already seen. Per spec §5 this "seen objects"
// state is process-local and reset on restart; the idempotent version-id is
// what prevents a restart from re-triggering ingest for old content.
func (s *store) Subscribe(ctx context.Context, bucket string, handler func(objectstore.Event)) error {
	seen := map[string]string{} // key -> etag
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	poll := func() error {
		it := s.client.Bucket(bucket).Objects(ctx, nil)
		current := map[string]string{}
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return err
			}
			current[attrs.Name] = attrs.Etag
			if prevEtag, ok := seen[attrs.Name]; !ok || prevEtag != attrs.Etag {
				handler(objectstore.Event{
					Type:      objectstore.EventCreated,
					Bucket:    bucket,
					Key:       attrs.Name,
					ETag:      attrs.Etag,
					Size:      attrs.Size,
					Timestamp: attrs.Updated,
				})
			}
		}
		for key := range seen {
			if _, ok := current[key]; !ok {
				handler(objectstore.Event{
					Type:      objectstore.EventRemoved,
					Bucket:    bucket,
					Key:       key,
					Timestamp: time.Now(),
				})
			}
		}
		seen = current
		return nil
	}

	if err := poll(); err != nil {
		s.log.Warn("initial bucket poll failed", "bucket", bucket, "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := poll(); err != nil {
				s.log.Warn("bucket poll failed", "bucket", bucket, "error", err)
			}
		}
	}
}
