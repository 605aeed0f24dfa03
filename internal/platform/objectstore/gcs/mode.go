package gcs

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
)

// Mode selects between a real GCS bucket and the local fake-gcs-server
// emulator, the same OBJECT_STORAGE_MODE selector the teacher project uses.
type Mode string

const (
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
)

type Config struct {
	Mode         Mode
	EmulatorHost string
}

type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "gcs config: " + e.Reason }

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{EmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", "")}
	raw := strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", ""))
	switch Mode(raw) {
	case "":
		if cfg.EmulatorHost != "" {
			cfg.Mode = ModeGCSEmulator
		} else {
			cfg.Mode = ModeGCS
		}
	case ModeGCS:
		cfg.Mode = ModeGCS
	case ModeGCSEmulator:
		cfg.Mode = ModeGCSEmulator
	default:
		return cfg, &ConfigError{Reason: fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q", raw)}
	}
	if cfg.Mode == ModeGCSEmulator {
		if cfg.EmulatorHost == "" {
			return cfg, &ConfigError{Reason: "OBJECT_STORAGE_MODE=gcs_emulator requires STORAGE_EMULATOR_HOST"}
		}
		u, err := url.Parse(cfg.EmulatorHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return cfg, &ConfigError{Reason: fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q", cfg.EmulatorHost)}
		}
	}
	return cfg, nil
}
