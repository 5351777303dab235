package familyqueue

import (
	"sort"

	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// CustomQueue implements the Custom batching rule of spec.md §4.A: group
// metric values by name and emit the batch mean per declared metric.
// Metrics not declared on the profile are discarded with a log, per
// spec.md §4.A and the boundary behavior in §8.
type CustomQueue struct {
	profile types.CustomProfile
	log     *zap.Logger
	now     Clock
}

func (q *CustomQueue) Convert(batch []types.Sample) (types.ServerRecords, error) {
	values := make(map[string][]float64, len(q.profile.Metrics))
	for name := range q.profile.Metrics {
		values[name] = nil
	}

	for _, sample := range batch {
		for _, m := range sample.Metrics {
			col, declared := values[m.Name]
			if !declared {
				if q.log != nil {
					q.log.Debug("metric not declared on profile, discarding", zap.String("metric", m.Name))
				}
				continue
			}
			values[m.Name] = append(col, m.Value)
		}
	}

	ts := q.now()
	var out types.ServerRecords
	out.RecordType = types.RecordCustom
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		col := values[name]
		if len(col) == 0 {
			continue
		}
		out.Custom = append(out.Custom, types.CustomRecord{
			CreatedAt:  ts,
			Ts:         ts,
			Space:      q.profile.Header.Space,
			Name:       q.profile.Header.Name,
			Version:    q.profile.Header.Version,
			ProfileUID: q.profile.Header.UID,
			Metric:     name,
			Value:      MeanSamplePolicy(col),
		})
	}
	return out, nil
}
