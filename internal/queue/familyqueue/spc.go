package familyqueue

import (
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// SamplePolicy reduces one feature's batch column to the single value
// emitted as that feature's DriftRecord. spec.md §4.A and its Open Question
// call this policy out explicitly as "pluggable" rather than fixed, since
// it is unclear whether downstream drift rules want per-sample granularity
// instead of a batch mean; SpcQueue takes one as a constructor argument
// rather than inferring a single hardcoded reduction.
type SamplePolicy func(values []float64) float64

// MeanSamplePolicy is the default policy: the batch mean per feature, per
// spec.md §4.A's current emission rule.
func MeanSamplePolicy(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SpcQueue implements the SPC batching rule of spec.md §4.A: for each
// monitored feature, reduce the batch column through policy (batch mean by
// default) and emit the result as a single DriftRecord.
type SpcQueue struct {
	profile types.SpcProfile
	log     *zap.Logger
	now     Clock
	policy  SamplePolicy
}

func (q *SpcQueue) Convert(batch []types.Sample) (types.ServerRecords, error) {
	columns := make(map[string][]float64, len(q.profile.Header.AlertConfig.FeaturesToMonitor))
	for _, f := range q.profile.Header.AlertConfig.FeaturesToMonitor {
		columns[f] = nil
	}

	for _, sample := range batch {
		for _, feat := range sample.Features {
			col, monitored := columns[feat.Name]
			if !monitored {
				if q.log != nil {
					q.log.Debug("feature not monitored by profile, discarding", zap.String("feature", feat.Name))
				}
				continue
			}
			v, err := feat.ToFloat(q.profile.Header.FeatureMap)
			if err != nil {
				if q.log != nil {
					q.log.Warn("dropping unresolvable feature value", zap.String("feature", feat.Name), zap.Error(err))
				}
				continue
			}
			columns[feat.Name] = append(col, v)
		}
	}

	ts := q.now()
	var out types.ServerRecords
	out.RecordType = types.RecordSpc
	for _, feature := range q.profile.Header.AlertConfig.FeaturesToMonitor {
		values := columns[feature]
		if len(values) == 0 {
			continue
		}
		out.Spc = append(out.Spc, types.SpcRecord{
			CreatedAt:  ts,
			Ts:         ts,
			Space:      q.profile.Header.Space,
			Name:       q.profile.Header.Name,
			Version:    q.profile.Header.Version,
			ProfileUID: q.profile.Header.UID,
			Feature:    feature,
			Value:      q.policy(values),
		})
	}
	return out, nil
}
