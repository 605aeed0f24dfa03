// Package pipelineerr defines the tagged error variants propagated across
// the ingest, orchestrator, publisher, retry, and query components.
package pipelineerr

import "fmt"

type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindAlreadyExists      Kind = "already_exists"
	KindMediaFormat        Kind = "media_format"
	KindEngineConfig       Kind = "engine_config"
	KindTransientNetwork   Kind = "transient_network"
	KindTransientResource  Kind = "transient_resource"
	KindPermanentDownstream Kind = "permanent_downstream"
	KindTimeout            Kind = "timeout"
	KindInvalidInput       Kind = "invalid_input"
	KindInternal           Kind = "internal"
)

// Retryable reports whether a failure of this kind should be retried by the
// retry/quarantine manager rather than routed straight to the DLQ.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientNetwork, KindTransientResource, KindTimeout:
		return true
	default:
		return false
	}
}

// Terminal reports whether a failure of this kind is never retried and goes
// straight to quarantine on first occurrence.
func (k Kind) Terminal() bool {
	switch k {
	case KindMediaFormat, KindEngineConfig, KindPermanentDownstream:
		return true
	default:
		return false
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if err == nil {
		return ""
	}
	if asError(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
