package pipelineerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableKinds(t *testing.T) {
	retryable := []Kind{KindTransientNetwork, KindTransientResource, KindTimeout}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Fatalf("%s: want Retryable()=true", k)
		}
	}
	notRetryable := []Kind{KindNotFound, KindAlreadyExists, KindMediaFormat, KindEngineConfig, KindInvalidInput, KindInternal}
	for _, k := range notRetryable {
		if k.Retryable() {
			t.Fatalf("%s: want Retryable()=false", k)
		}
	}
}

func TestTerminalKinds(t *testing.T) {
	terminal := []Kind{KindMediaFormat, KindEngineConfig, KindPermanentDownstream}
	for _, k := range terminal {
		if !k.Terminal() {
			t.Fatalf("%s: want Terminal()=true", k)
		}
	}
	notTerminal := []Kind{KindTransientNetwork, KindTimeout, KindNotFound}
	for _, k := range notTerminal {
		if k.Terminal() {
			t.Fatalf("%s: want Terminal()=false", k)
		}
	}
}

func TestErrorUnwrapAndFormatting(t *testing.T) {
	wrapped := fmt.Errorf("boom")
	e := New(KindTimeout, "orchestrator.phase", wrapped)

	if !errors.Is(e, wrapped) {
		t.Fatalf("errors.Is should see through Unwrap")
	}
	want := "orchestrator.phase: timeout: boom"
	if got := e.Error(); got != want {
		t.Fatalf("Error(): want=%q got=%q", want, got)
	}
}

func TestKindOfExtractsWrappedKind(t *testing.T) {
	base := New(KindMediaFormat, "asr.Transcribe", fmt.Errorf("bad codec"))
	wrapped := fmt.Errorf("job failed: %w", base)

	if got := KindOf(wrapped); got != KindMediaFormat {
		t.Fatalf("KindOf: want=%s got=%s", KindMediaFormat, got)
	}
}

func TestKindOfDefaultsToInternalForBareErrors(t *testing.T) {
	if got := KindOf(fmt.Errorf("unstructured failure")); got != KindInternal {
		t.Fatalf("KindOf: want=%s got=%s", KindInternal, got)
	}
}

func TestKindOfNilError(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil): want=%q got=%q", "", got)
	}
}
