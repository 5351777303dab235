package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/scouter-ml/scouter/internal/drift"
	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePersister struct {
	rows []types.DriftAlert
}

func (f *fakePersister) PersistAlert(_ context.Context, alert types.DriftAlert) error {
	f.rows = append(f.rows, alert)
	return nil
}

type failingSink struct{}

func (failingSink) Send(context.Context, string, drift.Alert) error {
	return errors.New("webhook unreachable")
}

func TestDispatcher_PersistsAlertsEvenWhenSinkFails(t *testing.T) {
	persister := &fakePersister{}
	d := New(persister, zap.NewNop(), map[DispatchType]Sink{DispatchSlack: failingSink{}})

	alerts := []drift.Alert{
		{FeatureOrMetric: "x", Kind: "OutOfBounds3Sigma", Zone: "upper", DriftValue: 4.0},
	}
	err := d.Dispatch(context.Background(), "profile-uid", DispatchSlack, alerts)
	assert.Error(t, err, "sink failure should surface to the caller")
	require.Len(t, persister.rows, 1, "the alert row must still be persisted despite the sink failure")
	assert.Equal(t, "x", persister.rows[0].FeatureOrMetric)
}

func TestDispatcher_FallsBackToConsoleForUnknownDispatchType(t *testing.T) {
	persister := &fakePersister{}
	d := New(persister, zap.NewNop(), map[DispatchType]Sink{DispatchConsole: NewConsoleSink(zap.NewNop())})

	err := d.Dispatch(context.Background(), "profile-uid", DispatchType("Unknown"), []drift.Alert{
		{FeatureOrMetric: "m", Kind: "CustomThresholdExceeded"},
	})
	require.NoError(t, err)
	require.Len(t, persister.rows, 1)
}

func TestDispatcher_EmptyAlertsPersistsNothing(t *testing.T) {
	persister := &fakePersister{}
	d := New(persister, zap.NewNop(), map[DispatchType]Sink{DispatchConsole: NewConsoleSink(zap.NewNop())})

	err := d.Dispatch(context.Background(), "profile-uid", DispatchConsole, nil)
	require.NoError(t, err)
	assert.Empty(t, persister.rows)
}
