// Package transport implements the uniform Publisher interface of
// spec.md §4.B over four wire transports, all sharing the same
// types.ServerRecords JSON schema so consumers stay transport-agnostic.
package transport

import (
	"context"

	"github.com/scouter-ml/scouter/internal/types"
)

// Publisher is the single trait spec.md §4.B requires every transport to
// implement.
type Publisher interface {
	Publish(ctx context.Context, records types.ServerRecords) error
	Flush(ctx context.Context) error
	Close() error
}
