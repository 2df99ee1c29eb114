package fairness

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Params holds the tuning constants of the estimator.
type Params struct {
	// LeaseScaleYears is the lease difference that counts as one unit of distance.
	LeaseScaleYears float64
	// AreaScaleFraction is the fraction of subject floor area that counts as
	// one unit of distance.
	AreaScaleFraction float64
	// MaxComparables caps how many top-weighted comparables feed the statistics.
	MaxComparables int
	// MaxReturned caps the comparables echoed back in the result.
	MaxReturned int
	// MinComparables is the smallest matching pool that yields an estimate.
	MinComparables int
	// MinThreshold and MaxThreshold bound the dynamic fairness threshold.
	MinThreshold float64
	MaxThreshold float64
}

// MADScale converts a median absolute deviation into a normal-consistent sigma.
const MADScale = 1.4826

// DefaultParams returns the empirically tuned constants.
func DefaultParams() Params {
	return Params{
		LeaseScaleYears:   5,
		AreaScaleFraction: 0.15,
		MaxComparables:    50,
		MaxReturned:       5,
		MinComparables:    3,
		MinThreshold:      0.08,
		MaxThreshold:      0.20,
	}
}

// ValidateParams checks that p is internally consistent.
func ValidateParams(p Params) error {
	var errs []string

	if p.LeaseScaleYears <= 0 {
		errs = append(errs, "lease_scale_years must be > 0")
	}
	if p.AreaScaleFraction <= 0 {
		errs = append(errs, "area_scale_fraction must be > 0")
	}
	if p.MaxComparables < 1 {
		errs = append(errs, "max_comparables must be >= 1")
	}
	if p.MaxReturned < 0 {
		errs = append(errs, "max_returned must be >= 0")
	}
	if p.MinComparables < 1 {
		errs = append(errs, "min_comparables must be >= 1")
	}
	if p.MaxComparables > 0 && p.MinComparables > p.MaxComparables {
		errs = append(errs, fmt.Sprintf("min_comparables (%d) must not exceed max_comparables (%d)", p.MinComparables, p.MaxComparables))
	}
	if p.MinThreshold < 0 {
		errs = append(errs, "min_threshold must be >= 0")
	}
	if p.MaxThreshold < p.MinThreshold {
		errs = append(errs, "max_threshold must be >= min_threshold")
	}

	if len(errs) > 0 {
		return eris.Errorf("fairness: params validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
