// Package familyqueue implements the per-profile-family batch-to-DriftRecord
// conversion rules of spec.md §4.A, grounded on
// original_source/crates/scouter_events/src/queue/spc/feature_queue.rs and
// crates/scouter_drift/src/custom/feature_queue.rs.
package familyqueue

import (
	"time"

	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// Converter turns a drained batch of Samples into the wire-format
// ServerRecords for one profile's record_type. Implementations must be
// deterministic given the same batch, per spec.md §4.A.
type Converter interface {
	Convert(batch []types.Sample) (types.ServerRecords, error)
}

// Clock lets tests pin "now" for deterministic created_at/ts assertions.
type Clock func() time.Time

func defaultClock() time.Time { return time.Now().UTC() }

// New builds the Converter appropriate for profile's drift_type (a profile
// value decoded from a ProfileRow) and returns it together with the
// types.EntityKind its queue accepts. For an SpcProfile, policy selects the per-feature
// batch-reduction rule (nil defaults to MeanSamplePolicy); it is ignored for
// the other two families.
func New(profile any, log *zap.Logger, now Clock, policy SamplePolicy) (Converter, types.EntityKind, error) {
	if now == nil {
		now = defaultClock
	}
	switch p := profile.(type) {
	case types.SpcProfile:
		if policy == nil {
			policy = MeanSamplePolicy
		}
		return &SpcQueue{profile: p, log: log, now: now, policy: policy}, types.FeatureEntity, nil
	case types.PsiProfile:
		return &PsiQueue{profile: p, log: log, now: now}, types.FeatureEntity, nil
	case types.CustomProfile:
		return &CustomQueue{profile: p, log: log, now: now}, types.MetricEntity, nil
	default:
		return nil, 0, &UnsupportedProfileError{}
	}
}

// UnsupportedProfileError is returned when New receives a value that is not
// one of the three decoded profile variants.
type UnsupportedProfileError struct{}

func (e *UnsupportedProfileError) Error() string {
	return "familyqueue: unsupported profile type"
}
