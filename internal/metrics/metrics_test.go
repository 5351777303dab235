package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectorsAndGathersCleanly(t *testing.T) {
	m := New()

	m.QueueDepth.WithLabelValues("kafka").Set(3)
	m.PublishErrors.WithLabelValues("kafka").Inc()
	m.ArchiverBatches.WithLabelValues("spc").Inc()
	m.ArchiverRows.WithLabelValues("spc").Add(50)
	m.EvaluatorRuns.WithLabelValues("spc", "ok").Inc()
	m.AlertsDispatched.WithLabelValues("Console", "ok").Inc()

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	var sawQueueDepth bool
	for _, fam := range families {
		if fam.GetName() == "scouter_transport_queue_depth" {
			sawQueueDepth = true
			require.Len(t, fam.GetMetric(), 1)
			assert.Equal(t, 3.0, fam.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, sawQueueDepth)
}
