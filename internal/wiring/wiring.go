// Package wiring assembles the concrete adapters behind every port and
// hands back the shared component set both cmd/ingestd and cmd/workerd
// build on — mirroring the teacher's internal/app bootstrap, split by
// concern instead of by a single monolithic App.
package wiring

import (
	"fmt"
	"os"
	"strings"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/pgstore"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/sqlitestore"
	"github.com/mediavault/transcript-pipeline/internal/platform/asr"
	"github.com/mediavault/transcript-pipeline/internal/platform/asr/fakeasr"
	"github.com/mediavault/transcript-pipeline/internal/platform/asr/gcpspeech"
	"github.com/mediavault/transcript-pipeline/internal/platform/embed"
	"github.com/mediavault/transcript-pipeline/internal/platform/embed/fakeembed"
	"github.com/mediavault/transcript-pipeline/internal/platform/embed/httpembed"
	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore/gcs"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore/localfs"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue/inmem"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue/redisqueue"
	"github.com/mediavault/transcript-pipeline/internal/platform/vectorindex"
	"github.com/mediavault/transcript-pipeline/internal/platform/vectorindex/qdrant"
)

// Backend selects local/dev fakes or production adapters, resolved from the
// BACKEND env var with a -backend flag override (spec §6's "backend
// selector (local | production)").
type Backend string

const (
	BackendLocal      Backend = "local"
	BackendProduction Backend = "production"
)

// ResolveBackend reads flagOverride first, falling back to BACKEND, then
// defaulting to local — the same override-then-env-then-default order the
// teacher's config layer applies to every knob.
func ResolveBackend(flagOverride string) Backend {
	v := strings.ToLower(strings.TrimSpace(flagOverride))
	if v == "" {
		v = strings.ToLower(envutil.String("BACKEND", string(BackendLocal)))
	}
	switch Backend(v) {
	case BackendProduction:
		return BackendProduction
	default:
		return BackendLocal
	}
}

// Components is the full set of ports a binary might need; each binary only
// consumes the subset relevant to it.
type Components struct {
	Log      *logger.Logger
	Backend  Backend
	DB       store.Database
	Objects  objectstore.Store
	Jobs     queue.Queue
	ASR      asr.Engine
	Embedder embed.Embedder
}

// Build resolves every port's concrete adapter for the given backend.
func Build(log *logger.Logger, backend Backend) (*Components, error) {
	c := &Components{Log: log, Backend: backend}

	db, err := buildDatabase(log, backend)
	if err != nil {
		return nil, fmt.Errorf("wiring: database: %w", err)
	}
	c.DB = db

	objects, err := buildObjectStore(log, backend)
	if err != nil {
		return nil, fmt.Errorf("wiring: object store: %w", err)
	}
	c.Objects = objects

	jobs, err := buildQueue(log, backend)
	if err != nil {
		return nil, fmt.Errorf("wiring: queue: %w", err)
	}
	c.Jobs = jobs

	engine, err := buildASR(log, backend)
	if err != nil {
		return nil, fmt.Errorf("wiring: asr: %w", err)
	}
	c.ASR = engine

	embedder, err := buildEmbedder(log, backend)
	if err != nil {
		return nil, fmt.Errorf("wiring: embedder: %w", err)
	}
	c.Embedder = embedder

	log.Info("components wired", "backend", backend)
	return c, nil
}

func buildDatabase(log *logger.Logger, backend Backend) (store.Database, error) {
	if backend == BackendLocal {
		return sqlitestore.New(log, envutil.String("SQLITE_DSN", ""))
	}
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required for the production backend")
	}
	var index vectorindex.Index
	if envutil.Bool("QDRANT_ENABLED", false) {
		cfg, cfgErr := qdrant.ResolveConfigFromEnv()
		if cfgErr != nil {
			return nil, fmt.Errorf("qdrant config: %w", cfgErr)
		}
		idx, idxErr := qdrant.New(log, cfg)
		if idxErr != nil {
			return nil, fmt.Errorf("qdrant index: %w", idxErr)
		}
		index = idx
	}
	return pgstore.New(log, dsn, index)
}

func buildObjectStore(log *logger.Logger, backend Backend) (objectstore.Store, error) {
	if backend == BackendLocal {
		return localfs.New(envutil.String("LOCALFS_ROOT", "./runner-setup/objectstore")), nil
	}
	return gcs.New(log)
}

func buildQueue(log *logger.Logger, backend Backend) (queue.Queue, error) {
	if backend == BackendLocal {
		return inmem.New(), nil
	}
	return redisqueue.New(log)
}

func buildASR(log *logger.Logger, backend Backend) (asr.Engine, error) {
	if backend == BackendLocal {
		return fakeasr.New(), nil
	}
	return gcpspeech.New(log)
}

func buildEmbedder(log *logger.Logger, backend Backend) (embed.Embedder, error) {
	if backend == BackendLocal {
		return fakeembed.New(envutil.Int("EMBEDDING_DIMENSION", 1536)), nil
	}
	return httpembed.New(log)
}

// EnginePolicyFromEnv builds the default engine policy applied to every
// newly ingested asset (spec §3's EnginePolicy).
func EnginePolicyFromEnv(backend Backend) domain.EnginePolicy {
	engineName := "fake_asr"
	if backend == BackendProduction {
		engineName = "gcp_speech"
	}
	return domain.EnginePolicy{
		Engine:                  engineName,
		DiarizationEnabled:      envutil.Bool("DIARIZATION_ENABLED", false),
		ExecutionMode:           domain.ExecutionModeAsync,
		ComputeThresholdSeconds: envutil.Float("COMPUTE_THRESHOLD_SECONDS", 600),
	}
}
