//go:build !llama

package backend

import (
	"github.com/rs/zerolog"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = false

// NewLlama fails fast: the in-process runtime needs the 'llama' build tag
// (and CGO). Default builds stay CGO-free.
func NewLlama(cfg LlamaConfig, snapshotBuffer int, log zerolog.Logger) (Backend, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
