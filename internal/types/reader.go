package types

import "time"

// TimeInterval names the preset lookback windows the Unified Reader
// accepts, mirroring original_source's TimeInterval enum.
type TimeInterval string

const (
	FifteenMinutes  TimeInterval = "15minute"
	ThirtyMinutes   TimeInterval = "30minute"
	OneHour         TimeInterval = "1hour"
	FourHours       TimeInterval = "4hour"
	SixHours        TimeInterval = "6hour"
	TwelveHours     TimeInterval = "12hour"
	TwentyFourHours TimeInterval = "24hour"
	SevenDays       TimeInterval = "7day"
	CustomInterval  TimeInterval = "custom"
)

// ToMinutes returns the window length in minutes, 0 for CustomInterval
// (the caller supplies CustomRange instead).
func (t TimeInterval) ToMinutes() int {
	switch t {
	case FifteenMinutes:
		return 15
	case ThirtyMinutes:
		return 30
	case OneHour:
		return 60
	case FourHours:
		return 240
	case SixHours:
		return 360
	case TwelveHours:
		return 720
	case TwentyFourHours:
		return 1440
	case SevenDays:
		return 10080
	default:
		return 0
	}
}

// CustomRange is an explicit [Start, End] window (both ends inclusive),
// used when Interval is CustomInterval.
type CustomRange struct {
	Start time.Time
	End   time.Time
}

// DriftRequest parameterizes one Unified Reader query, per spec.md §4.H.
type DriftRequest struct {
	EntityID      string
	RecordType    RecordType
	Interval      TimeInterval
	MaxDataPoints int
	CustomRange   *CustomRange
}

// Window resolves the request's [start, end] bounds.
func (r DriftRequest) Window(now time.Time) (time.Time, time.Time) {
	if r.Interval == CustomInterval && r.CustomRange != nil {
		return r.CustomRange.Start, r.CustomRange.End
	}
	minutes := r.Interval.ToMinutes()
	if minutes == 0 {
		minutes = SixHours.ToMinutes()
	}
	start := now.Add(-time.Duration(minutes) * time.Minute)
	return start, now
}

// SpcDriftFeatures holds the binned time series for every SPC feature
// named in a query, keyed by feature name.
type SpcDriftFeatures struct {
	Features map[string]SpcFeatureSeries
}

// SpcFeatureSeries pairs per-bucket timestamps with per-bucket mean values
// for one feature, the arrays kept aligned by index.
type SpcFeatureSeries struct {
	CreatedAt []time.Time
	Values    []float64
}

// BinnedPsiFeatureMetrics holds, per feature, the observed bin proportions
// at each bucket boundary.
type BinnedPsiFeatureMetrics struct {
	Features map[string]PsiFeatureSeries
}

// PsiFeatureSeries pairs per-bucket timestamps with the bin_id -> observed
// proportion map computed for that bucket.
type PsiFeatureSeries struct {
	CreatedAt         []time.Time
	OverallProportions []map[int64]float64
}

// BinnedCustomMetrics holds, per metric, the binned mean time series.
type BinnedCustomMetrics struct {
	Metrics map[string]CustomMetricSeries
}

// CustomMetricSeries pairs per-bucket timestamps with per-bucket mean
// values for one custom metric.
type CustomMetricSeries struct {
	CreatedAt []time.Time
	Values    []float64
}
