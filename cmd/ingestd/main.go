// Command ingestd subscribes to object-store notifications, runs the
// ingest controller, and hosts the HTTP search API (SPEC_FULL §1).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediavault/transcript-pipeline/internal/api"
	"github.com/mediavault/transcript-pipeline/internal/api/handlers"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/ingest"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/query"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/retry"
	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore"
	"github.com/mediavault/transcript-pipeline/internal/platform/tracing"
	"github.com/mediavault/transcript-pipeline/internal/wiring"
)

func main() {
	var backendFlag string
	var addr string
	var bucket string
	flag.StringVar(&backendFlag, "backend", "", "backend override: local|production (else BACKEND env)")
	flag.StringVar(&addr, "addr", envutil.String("HTTP_ADDR", ":8080"), "HTTP listen address")
	flag.StringVar(&bucket, "bucket", envutil.String("INGEST_BUCKET", "media"), "bucket to subscribe to")
	flag.Parse()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(78)
	}
	defer log.Sync()

	backend := wiring.ResolveBackend(backendFlag)
	shutdownTracing := tracing.Init(context.Background(), log, tracing.Config{ServiceName: "ingestd"})
	defer shutdownTracing(context.Background())

	components, err := wiring.Build(log, backend)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(78)
	}

	defaultPolicy := wiring.EnginePolicyFromEnv(backend)
	policyOf := func(bucket, objectKey string) domain.EnginePolicy { return defaultPolicy }

	controller := ingest.NewController(log, components.DB, components.Objects, components.Jobs, policyOf)

	vectorDim := envutil.Int("EMBEDDING_DIMENSION", 1536)
	queryService := query.NewService(log, components.DB, components.Embedder, vectorDim)
	retryManager := retry.NewManager(log, components.DB, components.Jobs, retry.PolicyFromEnv())

	server := api.NewServer(api.RouterConfig{
		Log:           log,
		HealthHandler: handlers.NewHealthHandler(),
		SearchHandler: handlers.NewSearchHandler(log, queryService),
		TriageHandler: handlers.NewTriageHandler(log, components.DB, retryManager),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		err := components.Objects.Subscribe(ctx, bucket, func(ev objectstore.Event) {
			var handleErr error
			switch ev.Type {
			case objectstore.EventCreated:
				handleErr = controller.HandleObjectCreated(ctx, ev)
			case objectstore.EventRemoved:
				handleErr = controller.HandleObjectRemoved(ctx, ev)
			}
			if handleErr != nil {
				log.Error("ingest event handling failed", "bucket", ev.Bucket, "key", ev.Key, "error", handleErr)
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error("object store subscription ended", "error", err)
		}
	}()

	log.Info("ingestd listening", "addr", addr, "backend", backend, "bucket", bucket)
	if err := server.Run(addr); err != nil {
		log.Error("http server exited", "error", err)
		os.Exit(1)
	}
}
