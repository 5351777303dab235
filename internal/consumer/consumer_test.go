package consumer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	batches []types.ServerRecords
	fail    bool
}

func (f *fakeSink) WriteBatch(_ context.Context, records types.ServerRecords) error {
	if f.fail {
		return assert.AnError
	}
	f.batches = append(f.batches, records)
	return nil
}

func TestDecode_RejectsOversizedMessage(t *testing.T) {
	oversized := strings.Repeat("a", types.MaxMessageBytes+1)
	_, err := decode([]byte(oversized))
	assert.Error(t, err)
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	_, err := decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDecode_AcceptsValidServerRecords(t *testing.T) {
	body, err := json.Marshal(types.ServerRecords{
		RecordType: types.RecordCustom,
		Custom:     []types.CustomRecord{{Metric: "m", Value: 1}},
	})
	require.NoError(t, err)

	records, err := decode(body)
	require.NoError(t, err)
	assert.Equal(t, types.RecordCustom, records.RecordType)
	assert.Len(t, records.Custom, 1)
}
