package wiring

import (
	"os"
	"testing"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if value == "" {
		os.Unsetenv(key)
	} else {
		os.Setenv(key, value)
	}
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestResolveBackendDefaultsToLocal(t *testing.T) {
	withEnv(t, "BACKEND", "")
	if got := ResolveBackend(""); got != BackendLocal {
		t.Fatalf("ResolveBackend: want=%s got=%s", BackendLocal, got)
	}
}

func TestResolveBackendReadsEnvWhenNoFlag(t *testing.T) {
	withEnv(t, "BACKEND", "production")
	if got := ResolveBackend(""); got != BackendProduction {
		t.Fatalf("ResolveBackend: want=%s got=%s", BackendProduction, got)
	}
}

func TestResolveBackendFlagOverridesEnv(t *testing.T) {
	withEnv(t, "BACKEND", "production")
	if got := ResolveBackend("local"); got != BackendLocal {
		t.Fatalf("ResolveBackend: want=%s got=%s", BackendLocal, got)
	}
}

func TestResolveBackendRejectsUnknownValue(t *testing.T) {
	withEnv(t, "BACKEND", "")
	if got := ResolveBackend("nonsense"); got != BackendLocal {
		t.Fatalf("ResolveBackend: want fallback to %s, got %s", BackendLocal, got)
	}
}

func TestEnginePolicyFromEnvPicksEngineByBackend(t *testing.T) {
	local := EnginePolicyFromEnv(BackendLocal)
	if local.Engine != "fake_asr" {
		t.Fatalf("local engine: want=fake_asr got=%s", local.Engine)
	}
	prod := EnginePolicyFromEnv(BackendProduction)
	if prod.Engine != "gcp_speech" {
		t.Fatalf("production engine: want=gcp_speech got=%s", prod.Engine)
	}
}
