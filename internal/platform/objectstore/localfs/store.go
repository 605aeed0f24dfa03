// Package localfs is the local/dev objectstore.Store adapter: it maps
// buckets to subdirectories of a root directory on disk. It has no
// dependency on any cloud SDK and backs the local backend.
package localfs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore"
)

type store struct {
	root string

	mu   sync.Mutex
	seen map[string]map[string]string // bucket -> key -> etag
}

func New(root string) objectstore.Store {
	return &store{root: root, seen: map[string]map[string]string{}}
}

func (s *store) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}

func (s *store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(bucket, key))
	if err != nil {
		return nil, &objectstore.ErrObjectFetchError{Bucket: bucket, Key: key, Err: err}
	}
	return b, nil
}

func (s *store) Head(ctx context.Context, bucket, key string) (objectstore.ObjectMeta, error) {
	info, err := os.Stat(s.path(bucket, key))
	if err != nil {
		return objectstore.ObjectMeta{}, &objectstore.ErrObjectFetchError{Bucket: bucket, Key: key, Err: err}
	}
	b, err := os.ReadFile(s.path(bucket, key))
	if err != nil {
		return objectstore.ObjectMeta{}, &objectstore.ErrObjectFetchError{Bucket: bucket, Key: key, Err: err}
	}
	return objectstore.ObjectMeta{
		ETag:        etagOf(b),
		Size:        info.Size(),
		ContentType: contentTypeForKey(key),
		ModifiedAt:  info.ModTime(),
	}, nil
}

func (s *store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := os.Stat(s.path(bucket, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	base := filepath.Join(s.root, bucket)
	var out []string
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(base, p)
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *store) Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) error {
	p := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}

	b, _ := os.ReadFile(p)
	s.mu.Lock()
	if s.seen[bucket] == nil {
		s.seen[bucket] = map[string]string{}
	}
	s.seen[bucket][key] = etagOf(b)
	s.mu.Unlock()
	return nil
}

func (s *store) Delete(ctx context.Context, bucket, key string) error {
	if err := os.Remove(s.path(bucket, key)); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.seen[bucket], key)
	s.mu.Unlock()
	return nil
}

func (s *store) PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("file://%s?expires=%d", s.path(bucket, key), time.Now().Add(expiry).Unix()), nil
}

// Subscribe diffs the on-disk key set on each poll tick and delivers
// created/removed events for anything that changed since the last poll.
func (s *store) Subscribe(ctx context.Context, bucket string, handler func(objectstore.Event)) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	poll := func() error {
		keys, err := s.List(ctx, bucket, "")
		if err != nil {
			return err
		}
		s.mu.Lock()
		prev := s.seen[bucket]
		if prev == nil {
			prev = map[string]string{}
		}
		current := map[string]string{}
		s.mu.Unlock()

		for _, k := range keys {
			meta, err := s.Head(ctx, bucket, k)
			if err != nil {
				continue
			}
			current[k] = meta.ETag
			if prevEtag, ok := prev[k]; !ok || prevEtag != meta.ETag {
				handler(objectstore.Event{
					Type:      objectstore.EventCreated,
					Bucket:    bucket,
					Key:       k,
					ETag:      meta.ETag,
					Size:      meta.Size,
					Timestamp: meta.ModifiedAt,
				})
			}
		}
		for k := range prev {
			if _, ok := current[k]; !ok {
				handler(objectstore.Event{Type: objectstore.EventRemoved, Bucket: bucket, Key: k, Timestamp: time.Now()})
			}
		}
		s.mu.Lock()
		s.seen[bucket] = current
		s.mu.Unlock()
		return nil
	}

	_ = poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = poll()
		}
	}
}

func etagOf(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func contentTypeForKey(key string) string {
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
