package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/scouter-ml/scouter/internal/scoutererr"
	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverter struct {
	convert func(batch []types.Sample) (types.ServerRecords, error)
}

func (f *fakeConverter) Convert(batch []types.Sample) (types.ServerRecords, error) {
	return f.convert(batch)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []types.ServerRecords
}

func (f *fakePublisher) Publish(_ context.Context, records types.ServerRecords) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, records)
	return nil
}
func (f *fakePublisher) Flush(_ context.Context) error { return nil }
func (f *fakePublisher) Close() error                  { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func echoConverter() *fakeConverter {
	return &fakeConverter{convert: func(batch []types.Sample) (types.ServerRecords, error) {
		recs := make([]types.CustomRecord, len(batch))
		for i := range batch {
			recs[i] = types.CustomRecord{Metric: "x", Value: float64(i)}
		}
		return types.ServerRecords{RecordType: types.RecordCustom, Custom: recs}, nil
	}}
}

func TestQueue_AcceptsCapacityWithoutPublishing(t *testing.T) {
	pub := &fakePublisher{}
	q := New(4, types.MetricEntity, echoConverter(), pub, nil)
	defer q.Shutdown()

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Insert(types.Sample{Kind: types.MetricEntity, Metrics: []types.Metric{{Name: "x", Value: 1}}}))
	}
	assert.Equal(t, 0, pub.count(), "4 inserts into a capacity-4 queue must not publish yet")
}

func TestQueue_NPlus1thInsertTriggersPublish(t *testing.T) {
	pub := &fakePublisher{}
	q := New(4, types.MetricEntity, echoConverter(), pub, nil)
	defer q.Shutdown()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Insert(types.Sample{Kind: types.MetricEntity, Metrics: []types.Metric{{Name: "x", Value: 1}}}))
	}
	assert.Equal(t, 1, pub.count(), "the 5th insert into a capacity-4 queue must trigger exactly one publish")
}

func TestQueue_FlushHandsWholeBatchToTransport(t *testing.T) {
	pub := &fakePublisher{}
	q := New(100, types.MetricEntity, echoConverter(), pub, nil)

	for i := 0; i < 7; i++ {
		require.NoError(t, q.Insert(types.Sample{Kind: types.MetricEntity, Metrics: []types.Metric{{Name: "x", Value: 1}}}))
	}
	require.NoError(t, q.Flush())
	require.Equal(t, 1, pub.count())
	assert.Equal(t, 7, len(pub.published[0].Custom))
}

func TestQueue_WrongEntityKindRejected(t *testing.T) {
	pub := &fakePublisher{}
	q := New(10, types.MetricEntity, echoConverter(), pub, nil)
	defer q.Shutdown()

	err := q.Insert(types.Sample{Kind: types.FeatureEntity, Features: []types.Feature{{Name: "f", Value: types.NumericValue(1)}}})
	assert.ErrorIs(t, err, scoutererr.ErrWrongEntityKind)
}

func TestQueue_InsertAfterShutdownFailsFast(t *testing.T) {
	pub := &fakePublisher{}
	q := New(10, types.MetricEntity, echoConverter(), pub, nil)
	require.NoError(t, q.Shutdown())

	err := q.Insert(types.Sample{Kind: types.MetricEntity, Metrics: []types.Metric{{Name: "x", Value: 1}}})
	assert.Error(t, err)
}
