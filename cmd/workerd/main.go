// Command workerd drains the transcription job queue, running the
// orchestrator's five-phase pipeline (SPEC_FULL §4.2), the version
// publisher (§4.3), and the retry/quarantine manager (§4.4).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/orchestrator"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/publish"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/retry"
	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/tracing"
	"github.com/mediavault/transcript-pipeline/internal/wiring"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(78)
	}
	defer log.Sync()

	backend := wiring.ResolveBackend("")
	shutdownTracing := tracing.Init(context.Background(), log, tracing.Config{ServiceName: "workerd"})
	defer shutdownTracing(context.Background())

	components, err := wiring.Build(log, backend)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(78)
	}

	publisher := publish.NewPublisher(log, components.DB)
	retryManager := retry.NewManager(log, components.DB, components.Jobs, retry.PolicyFromEnv())

	orch := orchestrator.New(
		log,
		components.DB,
		components.Objects,
		components.ASR,
		components.Embedder,
		publisher,
		retryManager,
		orchestrator.ConfigFromEnv(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("workerd running", "backend", backend)
	if err := orch.Run(ctx, components.Jobs); err != nil && ctx.Err() == nil {
		log.Error("orchestrator exited", "error", err)
		os.Exit(1)
	}
	log.Info("workerd shut down")
}
