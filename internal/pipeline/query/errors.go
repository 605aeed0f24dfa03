package query

import (
	"fmt"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
)

var (
	errEmptyQuery    = fmt.Errorf("query text must not be empty")
	errMissingVector = fmt.Errorf("semantic search requires a query vector")
	errNoEmbedder    = fmt.Errorf("no embedder configured to derive a vector from the query text")
)

func errInvalidMode(mode store.SearchMode) error {
	return fmt.Errorf("unsupported search mode %q", mode)
}

func errDimensionMismatch(got, want int) error {
	return fmt.Errorf("query vector has dimension %d, expected %d", got, want)
}
