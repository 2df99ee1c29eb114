package fairness

import (
	"encoding/json"
	"math"
)

// RawRecord is one transaction as supplied by a data source. Field values are
// unvalidated and may be strings or numbers.
type RawRecord map[string]any

// Subject is the property being evaluated.
type Subject struct {
	Town                string  `json:"town"`
	FlatType            string  `json:"flatType"`
	FloorAreaSqm        float64 `json:"floorAreaSqm"`
	RemainingLeaseYears float64 `json:"remainingLeaseYears"`
	AskingPrice         float64 `json:"askingPrice"`
}

// Comparable is a normalized past transaction. PricePerSqm,
// AdjustedPricePerSqm and Weight are filled in during scoring.
type Comparable struct {
	Month               string  `json:"month"`
	Town                string  `json:"town"`
	FlatType            string  `json:"flatType"`
	FloorAreaSqm        float64 `json:"floorAreaSqm"`
	RemainingLeaseYears float64 `json:"remainingLeaseYears"`
	ResalePrice         float64 `json:"resalePrice"`
	StoreyRange         string  `json:"storeyRange,omitempty"`

	PricePerSqm         float64 `json:"pricePerSqm"`
	AdjustedPricePerSqm float64 `json:"adjustedPricePerSqm"`
	Weight              float64 `json:"weight"`
}

// Coefficients are the hedonic price sensitivities.
type Coefficients struct {
	BetaLease    float64 `json:"betaLease"`    // per lease-year difference, applied in the exponent
	GammaLogArea float64 `json:"gammaLogArea"` // elasticity to log floor area difference
}

// Label classifies an asking price against the estimated fair price.
type Label string

const (
	LabelFair             Label = "Fair"
	LabelAdvantageous     Label = "Advantageous"
	LabelDisadvantageous  Label = "Disadvantageous"
	LabelInsufficientData Label = "Insufficient Data"
)

// Result is the outcome of one estimate. FairPrice, BandLow and BandHigh are
// NaN when the estimate is undefined; DeviationPct is nil in that case.
type Result struct {
	FairPrice    float64
	BandLow      float64
	BandHigh     float64
	DeviationPct *float64
	Label        Label
	Comps        []Comparable

	// Sigma is the MAD-derived dispersion in currency units, unrounded.
	Sigma float64
	// Threshold is the clamped fairness band applied to DeviationPct.
	Threshold float64
	// PoolSize counts comparables that matched town and flat type.
	PoolSize int
	// Used counts comparables that went into the weighted statistics.
	Used int
}

// Defined reports whether the result carries a usable fair price.
func (r Result) Defined() bool {
	return r.Label != LabelInsufficientData && finite(r.FairPrice)
}

type resultJSON struct {
	FairPrice    *float64     `json:"fairPrice"`
	BandLow      *float64     `json:"bandLow"`
	BandHigh     *float64     `json:"bandHigh"`
	DeviationPct *float64     `json:"deviationPct"`
	Label        Label        `json:"label"`
	Comps        []Comparable `json:"comps"`
	Sigma        *float64     `json:"sigma,omitempty"`
	Threshold    *float64     `json:"threshold,omitempty"`
	PoolSize     int          `json:"poolSize"`
	Used         int          `json:"used"`
}

// MarshalJSON encodes undefined numbers as null and always emits comps as an
// array.
func (r Result) MarshalJSON() ([]byte, error) {
	comps := r.Comps
	if comps == nil {
		comps = []Comparable{}
	}
	return json.Marshal(resultJSON{
		FairPrice:    finitePtr(r.FairPrice),
		BandLow:      finitePtr(r.BandLow),
		BandHigh:     finitePtr(r.BandHigh),
		DeviationPct: r.DeviationPct,
		Label:        r.Label,
		Comps:        comps,
		Sigma:        finitePtr(r.Sigma),
		Threshold:    finitePtr(r.Threshold),
		PoolSize:     r.PoolSize,
		Used:         r.Used,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON; null numbers decode as NaN.
func (r *Result) UnmarshalJSON(data []byte) error {
	var aux resultJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Result{
		FairPrice:    orNaN(aux.FairPrice),
		BandLow:      orNaN(aux.BandLow),
		BandHigh:     orNaN(aux.BandHigh),
		DeviationPct: aux.DeviationPct,
		Label:        aux.Label,
		Comps:        aux.Comps,
		Sigma:        orNaN(aux.Sigma),
		Threshold:    orNaN(aux.Threshold),
		PoolSize:     aux.PoolSize,
		Used:         aux.Used,
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePtr(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
