// Package fairness estimates the fair resale price of an HDB flat from a pool
// of comparable transactions and labels an asking price against it.
//
// The estimate is a similarity-weighted hedonic price per square metre: each
// comparable is adjusted to the subject's remaining lease and floor area,
// weighted by how close it is to the subject, and summarized with a weighted
// median. Dispersion comes from the weighted median absolute deviation.
package fairness

import (
	"cmp"
	"math"
	"slices"

	"go.uber.org/zap"
)

// Estimator computes fairness results. It holds no mutable state and is safe
// for concurrent use.
type Estimator struct {
	params Params
}

// NewEstimator creates an Estimator with the given tuning constants.
// Callers should check p with ValidateParams first.
func NewEstimator(p Params) *Estimator {
	return &Estimator{params: p}
}

// Params returns the estimator's tuning constants.
func (e *Estimator) Params() Params {
	return e.params
}

// Estimate runs an estimate with DefaultParams.
func Estimate(subject Subject, pool []RawRecord, coeffs Coefficients) Result {
	return NewEstimator(DefaultParams()).Estimate(subject, pool, coeffs)
}

// Estimate normalizes pool and estimates the subject's fair price from it.
// Malformed records are dropped rather than reported.
func (e *Estimator) Estimate(subject Subject, pool []RawRecord, coeffs Coefficients) Result {
	return e.EstimateComparables(subject, NormalizeAll(pool), coeffs)
}

// EstimateComparables estimates the subject's fair price from already
// normalized comparables. The input slice is not modified.
func (e *Estimator) EstimateComparables(subject Subject, comps []Comparable, coeffs Coefficients) Result {
	p := e.params
	town := NormalizeKey(subject.Town)
	flatType := NormalizeKey(subject.FlatType)

	matched := make([]Comparable, 0, len(comps))
	for _, c := range comps {
		if NormalizeKey(c.Town) != town || NormalizeKey(c.FlatType) != flatType {
			continue
		}
		if c.FloorAreaSqm <= 0 || c.ResalePrice <= 0 {
			continue
		}
		matched = append(matched, c)
	}

	if len(matched) < p.MinComparables {
		return e.insufficient(subject, len(matched), 0)
	}

	logSubjectArea := math.Log(subject.FloorAreaSqm)
	areaScale := p.AreaScaleFraction * subject.FloorAreaSqm
	for i := range matched {
		c := &matched[i]
		leaseDelta := subject.RemainingLeaseYears - c.RemainingLeaseYears
		logAreaDelta := logSubjectArea - math.Log(c.FloorAreaSqm)

		c.PricePerSqm = c.ResalePrice / c.FloorAreaSqm
		c.AdjustedPricePerSqm = c.PricePerSqm * math.Exp(coeffs.BetaLease*leaseDelta+coeffs.GammaLogArea*logAreaDelta)

		dl := leaseDelta / p.LeaseScaleYears
		da := (subject.FloorAreaSqm - c.FloorAreaSqm) / areaScale
		c.Weight = 1 / (1 + math.Sqrt(dl*dl+da*da))
	}

	slices.SortStableFunc(matched, func(a, b Comparable) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	top := matched[:min(len(matched), p.MaxComparables)]

	values := make([]float64, len(top))
	weights := make([]float64, len(top))
	for i, c := range top {
		values[i] = c.AdjustedPricePerSqm
		weights[i] = c.Weight
	}
	fairPpsm := WeightedMedian(values, weights)

	deviations := make([]float64, len(top))
	for i, v := range values {
		deviations[i] = math.Abs(v - fairPpsm)
	}
	madPpsm := WeightedMedian(deviations, weights)

	fairPrice := fairPpsm * subject.FloorAreaSqm
	sigma := madPpsm * subject.FloorAreaSqm * MADScale

	if !finite(fairPrice) || fairPrice <= 0 || !finite(sigma) {
		return e.insufficient(subject, len(matched), len(top))
	}

	deviation := (subject.AskingPrice - fairPrice) / fairPrice
	tau := Clamp(sigma/fairPrice, p.MinThreshold, p.MaxThreshold)

	label := LabelFair
	switch {
	case deviation < -tau:
		label = LabelAdvantageous
	case deviation > tau:
		label = LabelDisadvantageous
	}

	returned := slices.Clone(top[:min(len(top), p.MaxReturned)])

	zap.L().Debug("fairness: estimate computed",
		zap.String("town", town),
		zap.String("flat_type", flatType),
		zap.Int("pool_size", len(matched)),
		zap.Int("used", len(top)),
		zap.Float64("fair_price", fairPrice),
		zap.Float64("sigma", sigma),
		zap.Float64("threshold", tau),
		zap.String("label", string(label)),
	)

	return Result{
		FairPrice:    math.Round(fairPrice),
		BandLow:      math.Round(fairPrice - sigma),
		BandHigh:     math.Round(fairPrice + sigma),
		DeviationPct: &deviation,
		Label:        label,
		Comps:        returned,
		Sigma:        sigma,
		Threshold:    tau,
		PoolSize:     len(matched),
		Used:         len(top),
	}
}

func (e *Estimator) insufficient(subject Subject, poolSize, used int) Result {
	zap.L().Debug("fairness: insufficient data",
		zap.String("town", NormalizeKey(subject.Town)),
		zap.String("flat_type", NormalizeKey(subject.FlatType)),
		zap.Int("pool_size", poolSize),
		zap.Int("min_comparables", e.params.MinComparables),
	)
	return Result{
		FairPrice: math.NaN(),
		BandLow:   math.NaN(),
		BandHigh:  math.NaN(),
		Label:     LabelInsufficientData,
		Comps:     []Comparable{},
		Sigma:     math.NaN(),
		Threshold: math.NaN(),
		PoolSize:  poolSize,
		Used:      used,
	}
}
