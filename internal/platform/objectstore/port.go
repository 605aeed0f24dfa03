// Package objectstore defines the object-store port consumed by the ingest
// controller and orchestrator (spec §4.6), plus the concrete GCS and
// local-filesystem adapters behind it.
package objectstore

import (
	"context"
	"io"
	"time"
)

// ObjectMeta is the authoritative metadata head() returns for an object.
type ObjectMeta struct {
	ETag        string
	Size        int64
	ContentType string
	ModifiedAt  time.Time
}

// EventType distinguishes create/remove notifications.
type EventType string

const (
	EventCreated EventType = "ObjectCreated"
	EventRemoved EventType = "ObjectRemoved"
)

// Event is the object-store notification schema from spec §6.
type Event struct {
	Type      EventType
	Bucket    string
	Key       string
	ETag      string
	Size      int64
	Timestamp time.Time
}

// Store is the port the pipeline depends on for all object I/O. Get/Head/
// List/Put/Delete are independent reads/writes with no locking required
// (spec §5); Subscribe delivers create/remove notifications at least once.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Head(ctx context.Context, bucket, key string) (ObjectMeta, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	Subscribe(ctx context.Context, bucket string, handler func(Event)) error
}

// ErrObjectFetchError is returned when the store is unavailable; the
// notification substrate is expected to redeliver (spec §4.1 step 4).
type ErrObjectFetchError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *ErrObjectFetchError) Error() string {
	return "object fetch error: " + e.Bucket + "/" + e.Key + ": " + e.Err.Error()
}

func (e *ErrObjectFetchError) Unwrap() error { return e.Err }
