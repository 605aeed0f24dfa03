package qdrant

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
)

type Config struct {
	URL        string
	Collection string
	VectorDim  int
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL       ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL       ConfigErrorCode = "invalid_url"
	ConfigErrorMissingColl      ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim ConfigErrorCode = "invalid_vector_dim"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid QDRANT_URL=%q", e.Value)
	case ConfigErrorMissingColl:
		return "QDRANT_COLLECTION is required"
	case ConfigErrorInvalidVectorDim:
		return fmt.Sprintf("invalid QDRANT_VECTOR_DIM=%q", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:        envutil.String("QDRANT_URL", ""),
		Collection: envutil.String("QDRANT_COLLECTION", "transcript_embeddings"),
		VectorDim:  envutil.Int("QDRANT_VECTOR_DIM", 1536),
	}
	if cfg.URL == "" {
		return Config{}, &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Config{}, &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return Config{}, &ConfigError{Code: ConfigErrorMissingColl}
	}
	if cfg.VectorDim <= 0 {
		return Config{}, &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: fmt.Sprintf("%d", cfg.VectorDim)}
	}
	return cfg, nil
}
