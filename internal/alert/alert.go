// Package alert implements the Alert Dispatcher of spec.md §4.K: it
// renders a sink-specific description for a drift finding, persists the
// alert row regardless of dispatch outcome, and isolates dispatch failures
// from persistence so one flaky webhook never drops history.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scouter-ml/scouter/internal/drift"
	"github.com/scouter-ml/scouter/internal/metrics"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// DispatchType selects the rendering/sink for one profile's alerts.
type DispatchType string

const (
	DispatchConsole  DispatchType = "Console"
	DispatchSlack    DispatchType = "Slack"
	DispatchOpsGenie DispatchType = "OpsGenie"
	DispatchEmail    DispatchType = "Email"
)

// Sink renders and delivers one alert. Implementations only format and
// transmit; persistence is the Dispatcher's job, not the sink's.
type Sink interface {
	Send(ctx context.Context, profileUID string, a drift.Alert) error
}

// Persister is the narrow registry surface the dispatcher needs.
type Persister interface {
	PersistAlert(ctx context.Context, alert types.DriftAlert) error
}

// Dispatcher selects a Sink by DispatchType and persists every alert via
// the Registry independent of sink outcome.
type Dispatcher struct {
	sinks     map[DispatchType]Sink
	persister Persister
	metrics   *metrics.Registry
	log       *zap.Logger
}

func New(persister Persister, log *zap.Logger, sinks map[DispatchType]Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, persister: persister, log: log}
}

// WithMetrics attaches a metrics registry, returning the dispatcher for
// chaining at construction time.
func (d *Dispatcher) WithMetrics(m *metrics.Registry) *Dispatcher {
	d.metrics = m
	return d
}

// Dispatch renders and sends a alerts through the configured sink, then
// persists every alert regardless of send success.
func (d *Dispatcher) Dispatch(ctx context.Context, profileUID string, dispatchType DispatchType, alerts []drift.Alert) error {
	sink, ok := d.sinks[dispatchType]
	if !ok {
		sink = d.sinks[DispatchConsole]
	}

	var firstErr error
	for _, a := range alerts {
		if sink != nil {
			if err := sink.Send(ctx, profileUID, a); err != nil {
				d.log.Warn("alert dispatch failed, alert row still persisted",
					zap.String("profile_uid", profileUID), zap.String("kind", a.Kind), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				d.recordDispatch(dispatchType, "error")
			} else {
				d.recordDispatch(dispatchType, "ok")
			}
		}

		details, _ := json.Marshal(a)
		row := types.DriftAlert{
			ID:              uuid.NewString(),
			Ts:              time.Now().UTC(),
			ProfileUID:      profileUID,
			FeatureOrMetric: a.FeatureOrMetric,
			Kind:            a.Kind,
			Zone:            a.Zone,
			DetailsJSON:     string(details),
			Active:          true,
		}
		if err := d.persister.PersistAlert(ctx, row); err != nil {
			return fmt.Errorf("alert: persisting alert row: %w", err)
		}
	}
	return firstErr
}

func (d *Dispatcher) recordDispatch(dispatchType DispatchType, result string) {
	if d.metrics == nil {
		return
	}
	d.metrics.AlertsDispatched.WithLabelValues(string(dispatchType), result).Inc()
}
