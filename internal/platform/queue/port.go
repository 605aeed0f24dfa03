// Package queue defines the delayed-delivery job queue port (spec §4.6)
// that carries transcription jobs between the ingest controller and the
// orchestrator, with ack/nack semantics for the retry manager.
package queue

import (
	"context"
	"time"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
)

// Delivery wraps a dequeued job together with the handle a consumer needs
// to ack or nack it.
type Delivery struct {
	Job      domain.TranscriptionJob
	DeliveryID string
}

// Queue is the port the ingest controller enqueues onto and the
// orchestrator's workers consume from.
type Queue interface {
	// Enqueue delivers the job for immediate consumption.
	Enqueue(ctx context.Context, job domain.TranscriptionJob) error
	// EnqueueDelayed delivers the job no earlier than now+delay, used by the
	// retry manager's exponential backoff (spec §4.4).
	EnqueueDelayed(ctx context.Context, job domain.TranscriptionJob, delay time.Duration) error
	// Dequeue blocks until a job is ready or ctx is cancelled.
	Dequeue(ctx context.Context) (*Delivery, error)
	// Ack permanently removes the delivery from the queue.
	Ack(ctx context.Context, deliveryID string) error
	// Nack returns the delivery to the queue for immediate redelivery.
	Nack(ctx context.Context, deliveryID string) error
}
