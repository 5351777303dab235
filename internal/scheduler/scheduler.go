// Package scheduler implements the Drift Scheduler of spec.md §4.I: a pool
// of worker goroutines that repeatedly claim at most one due profile via
// the Registry's skip-locked claim, evaluate it, dispatch alerts, and
// commit the transaction whether or not evaluation succeeded.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scouter-ml/scouter/internal/alert"
	"github.com/scouter-ml/scouter/internal/drift"
	"github.com/scouter-ml/scouter/internal/metrics"
	"github.com/scouter-ml/scouter/internal/reader"
	"github.com/scouter-ml/scouter/internal/registry"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

const (
	idleSleep     = 10 * time.Second
	errorBackoff  = 5 * time.Second
	windowBuckets = 1
)

// Scheduler owns a fixed pool of worker goroutines polling the registry
// for due profiles.
type Scheduler struct {
	reg        *registry.Registry
	reader     *reader.Reader
	dispatcher *alert.Dispatcher
	metrics    *metrics.Registry
	log        *zap.Logger
	numWorkers int
}

func New(reg *registry.Registry, rd *reader.Reader, dispatcher *alert.Dispatcher, m *metrics.Registry, log *zap.Logger, numWorkers int) *Scheduler {
	return &Scheduler{reg: reg, reader: rd, dispatcher: dispatcher, metrics: m, log: log, numWorkers: numWorkers}
}

// Run blocks until ctx is cancelled, running numWorkers independent claim
// loops. Each worker honors ctx for both its sleeps and the next claim
// attempt, so cancellation never leaves a claim outstanding.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (s *Scheduler) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := s.tick(ctx)
		if err != nil {
			s.log.Error("scheduler tick failed", zap.Int("worker", id), zap.Error(err))
			sleep(ctx, errorBackoff)
			continue
		}
		if !processed {
			sleep(ctx, idleSleep)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// tick claims at most one due task and evaluates it. The returned bool
// reports whether a task was claimed, regardless of evaluation outcome.
func (s *Scheduler) tick(ctx context.Context) (bool, error) {
	now := time.Now().UTC()
	tx, row, ok, err := s.reg.ClaimDueTask(ctx, now)
	if err != nil {
		return false, fmt.Errorf("scheduler: claiming due task: %w", err)
	}
	if !ok {
		return false, nil
	}

	started := time.Now()
	evalErr := s.evaluate(ctx, row, now)
	s.recordEvaluation(row, time.Since(started), evalErr)
	if evalErr != nil {
		s.log.Error("scheduler: evaluation failed, releasing claim",
			zap.String("profile_uid", row.UID), zap.Error(evalErr))
	}

	cronExpr, cronErr := cronExprOf(row)
	if cronErr != nil {
		_ = tx.Rollback()
		return true, fmt.Errorf("scheduler: reading cron for %s: %w", row.UID, cronErr)
	}
	if err := s.reg.CompleteTask(ctx, tx, row.UID, cronExpr, now); err != nil {
		_ = tx.Rollback()
		return true, fmt.Errorf("scheduler: completing task %s: %w", row.UID, err)
	}
	if err := tx.Commit(); err != nil {
		return true, fmt.Errorf("scheduler: committing task %s: %w", row.UID, err)
	}
	return true, nil
}

func (s *Scheduler) recordEvaluation(row types.ProfileRow, elapsed time.Duration, evalErr error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if evalErr != nil {
		outcome = "error"
	}
	s.metrics.EvaluatorRuns.WithLabelValues(string(row.DriftType), outcome).Inc()
	s.metrics.EvaluatorLatency.WithLabelValues(string(row.DriftType)).Observe(elapsed.Seconds())
}

func cronExprOf(row types.ProfileRow) (string, error) {
	body, err := row.DecodeBody()
	if err != nil {
		return "", err
	}
	switch p := body.(type) {
	case types.SpcProfile:
		return p.AlertConfig.Cron, nil
	case types.PsiProfile:
		return p.AlertConfig.Cron, nil
	case types.CustomProfile:
		return p.AlertConfig.Cron, nil
	default:
		return "", fmt.Errorf("scheduler: unknown profile body type %T", body)
	}
}

func (s *Scheduler) evaluate(ctx context.Context, row types.ProfileRow, now time.Time) error {
	body, err := row.DecodeBody()
	if err != nil {
		return fmt.Errorf("scheduler: decoding profile body: %w", err)
	}

	previous := time.Unix(row.PrevRunAt, 0).UTC()
	if row.PrevRunAt == 0 {
		previous = time.Unix(0, 0).UTC()
	}

	switch p := body.(type) {
	case types.SpcProfile:
		return s.evaluateSpc(ctx, row.UID, p, previous, now)
	case types.PsiProfile:
		return s.evaluatePsi(ctx, row.UID, p, previous, now)
	case types.CustomProfile:
		return s.evaluateCustom(ctx, row.UID, p, previous, now)
	default:
		return fmt.Errorf("scheduler: unsupported profile variant %T", body)
	}
}

func (s *Scheduler) evaluateSpc(ctx context.Context, profileUID string, p types.SpcProfile, previous, now time.Time) error {
	series, err := s.reader.Spc(ctx, types.DriftRequest{
		EntityID: profileUID, RecordType: types.RecordSpc, Interval: types.CustomInterval,
		MaxDataPoints: 200, CustomRange: &types.CustomRange{Start: previous, End: now},
	}, now)
	if err != nil {
		return fmt.Errorf("scheduler: fetching spc window: %w", err)
	}
	alerts := drift.EvaluateSpc(p, series.Features)
	if len(alerts) == 0 {
		return nil
	}
	return s.dispatcher.Dispatch(ctx, profileUID, alert.DispatchType(p.AlertConfig.DispatchType), alerts)
}

func (s *Scheduler) evaluatePsi(ctx context.Context, profileUID string, p types.PsiProfile, previous, now time.Time) error {
	binned, err := s.reader.Psi(ctx, types.DriftRequest{
		EntityID: profileUID, RecordType: types.RecordPsi, Interval: types.CustomInterval,
		MaxDataPoints: windowBuckets, CustomRange: &types.CustomRange{Start: previous, End: now},
	}, now)
	if err != nil {
		return fmt.Errorf("scheduler: fetching psi window: %w", err)
	}
	observed := map[string]map[int64]float64{}
	for feature, series := range binned.Features {
		if len(series.OverallProportions) == 0 {
			continue
		}
		observed[feature] = series.OverallProportions[len(series.OverallProportions)-1]
	}
	alerts := drift.EvaluatePsi(p, observed)
	if len(alerts) == 0 {
		return nil
	}
	return s.dispatcher.Dispatch(ctx, profileUID, alert.DispatchType(p.AlertConfig.DispatchType), alerts)
}

func (s *Scheduler) evaluateCustom(ctx context.Context, profileUID string, p types.CustomProfile, previous, now time.Time) error {
	binned, err := s.reader.Custom(ctx, types.DriftRequest{
		EntityID: profileUID, RecordType: types.RecordCustom, Interval: types.CustomInterval,
		MaxDataPoints: windowBuckets, CustomRange: &types.CustomRange{Start: previous, End: now},
	}, now)
	if err != nil {
		return fmt.Errorf("scheduler: fetching custom window: %w", err)
	}
	means := map[string]float64{}
	for metric, series := range binned.Metrics {
		if len(series.Values) == 0 {
			continue
		}
		means[metric] = series.Values[len(series.Values)-1]
	}
	alerts := drift.EvaluateCustom(p, means)
	if len(alerts) == 0 {
		return nil
	}
	return s.dispatcher.Dispatch(ctx, profileUID, alert.DispatchType(p.AlertConfig.DispatchType), alerts)
}
