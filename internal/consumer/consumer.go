// Package consumer implements the Ingestion Consumer of spec.md §4.D: one
// variant per transport, deserializing a transport message into
// ServerRecords, enforcing the 10 MiB wire cap, and dispatching to the
// Record Writer with transport-appropriate ack semantics.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// RecordSink is the narrow Record Writer surface a consumer dispatches to.
type RecordSink interface {
	WriteBatch(ctx context.Context, records types.ServerRecords) error
}

// decode enforces the size cap and deserializes one message body,
// returning an error the caller should treat as a drop, not a retry, per
// spec.md §7 ("messages that fail deserialization are dropped").
func decode(body []byte) (types.ServerRecords, error) {
	if len(body) > types.MaxMessageBytes {
		return types.ServerRecords{}, fmt.Errorf("consumer: message of %d bytes exceeds %d byte cap", len(body), types.MaxMessageBytes)
	}
	var records types.ServerRecords
	if err := json.Unmarshal(body, &records); err != nil {
		return types.ServerRecords{}, fmt.Errorf("consumer: malformed ServerRecords payload: %w", err)
	}
	return records, nil
}

func logDrop(log *zap.Logger, transport string, err error) {
	log.Warn("consumer: dropping undeserializable message", zap.String("transport", transport), zap.Error(err))
}
