package types

import "encoding/json"

// DriftType discriminates which profile family a persisted body decodes
// into, matching the "discriminator column next to a JSON body" design of
// spec.md §9 (drift_type tag) and original_source's scouter_types crate.
type DriftType string

const (
	DriftSpc    DriftType = "spc"
	DriftPsi    DriftType = "psi"
	DriftCustom DriftType = "custom"
)

// Direction is the threshold direction for a Custom alert condition.
type Direction string

const (
	DirectionAbove   Direction = "above"
	DirectionBelow   Direction = "below"
	DirectionOutside Direction = "outside"
)

// AlertConfig is the header block shared by every profile family, per
// spec.md §3.
type AlertConfig struct {
	Cron             string   `json:"cron"`
	DispatchType     string   `json:"dispatch_type"`
	FeaturesToMonitor []string `json:"features_to_monitor,omitempty"`
}

// Header is the common identity and scheduling block carried by every
// profile variant.
type Header struct {
	Space       string      `json:"space"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	UID         string      `json:"uid"`
	DriftType   DriftType   `json:"drift_type"`
	AlertConfig AlertConfig `json:"alert_config"`
	FeatureMap  FeatureMap  `json:"feature_map,omitempty"`
}

// SpcFeatureLimits is the per-feature control-limit baseline for one SPC
// profile feature.
type SpcFeatureLimits struct {
	Center float64 `json:"center"`
	LCL    float64 `json:"lcl"`
	UCL    float64 `json:"ucl"`
	N      int64   `json:"n"`
	C4     float64 `json:"c4"`
}

// SpcProfile is the "Spc" profile variant of spec.md §3.
type SpcProfile struct {
	Header
	Features map[string]SpcFeatureLimits `json:"features"`
}

// PsiFeatureBins is the per-feature baseline binning for one PSI profile
// feature: ordered bin edges (numeric features) plus the baseline bin
// proportions observed at calibration time.
type PsiFeatureBins struct {
	Edges               []float64 `json:"edges,omitempty"`
	BaselineProportions []float64 `json:"baseline_proportions"`
}

// PsiProfile is the "Psi" profile variant of spec.md §3.
type PsiProfile struct {
	Header
	Features     map[string]PsiFeatureBins `json:"features"`
	PsiThreshold float64                   `json:"psi_threshold"`
}

// CustomMetricConfig is one named metric's baseline and alert condition,
// per spec.md §3's Custom variant.
type CustomMetricConfig struct {
	Baseline  float64   `json:"baseline"`
	Direction Direction `json:"direction"`
	Delta     *float64  `json:"delta,omitempty"`
}

// CustomProfile is the "Custom" profile variant of spec.md §3.
type CustomProfile struct {
	Header
	Metrics map[string]CustomMetricConfig `json:"metrics"`
}

// ProfileRow is the persisted shape of a profile: the header fields needed
// for registry lookups/filtering plus the JSON-encoded body, matching
// spec.md §4.F ("Profile bodies are stored as JSON plus an indexed
// drift_type discriminator").
type ProfileRow struct {
	UID       string
	Space     string
	Name      string
	Version   string
	DriftType DriftType
	Active    bool
	Body      json.RawMessage
	NextRunAt int64 // unix seconds
	PrevRunAt int64 // unix seconds, 0 means epoch
}

// DecodeBody dispatches on DriftType and returns the concrete profile
// variant, erroring if the body does not match the discriminator.
func (r ProfileRow) DecodeBody() (any, error) {
	switch r.DriftType {
	case DriftSpc:
		var p SpcProfile
		if err := json.Unmarshal(r.Body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case DriftPsi:
		var p PsiProfile
		if err := json.Unmarshal(r.Body, &p); err != nil {
			return nil, err
		}
		return p, nil
	case DriftCustom:
		var p CustomProfile
		if err := json.Unmarshal(r.Body, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, &UnknownDriftTypeError{DriftType: r.DriftType}
	}
}

// UnknownDriftTypeError is returned when a profile row's discriminator
// does not match any known family.
type UnknownDriftTypeError struct {
	DriftType DriftType
}

func (e *UnknownDriftTypeError) Error() string {
	return "unknown drift_type: " + string(e.DriftType)
}
