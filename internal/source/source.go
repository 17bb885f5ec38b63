// Package source produces event batches for the CLI: host metrics read with
// gopsutil and in-process Prometheus registries passed through the decoder.
package source

import (
	"context"

	"pipecore/internal/event"
)

// Source produces one batch per collection.
// Params: context for cancellation and deadlines.
// Returns: batch or collection error.
type Source interface {
	Name() string
	Collect(ctx context.Context) (event.EventArray, error)
}
