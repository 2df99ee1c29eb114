package fairness

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Keys accepted for each field, upstream dataset names first.
var (
	monthKeys       = []string{"month"}
	townKeys        = []string{"town"}
	flatTypeKeys    = []string{"flat_type", "flatType"}
	floorAreaKeys   = []string{"floor_area_sqm", "floorAreaSqm"}
	resalePriceKeys = []string{"resale_price", "resalePrice"}
	leaseKeys       = []string{"remaining_lease_years", "remainingLeaseYears", "remaining_lease", "remainingLease"}
	storeyKeys      = []string{"storey_range", "storeyRange"}
)

var leaseTextRe = regexp.MustCompile(`(?i)^\s*(\d+)\s*years?(?:\s+(\d+)\s*months?)?\s*$`)

// Normalize maps a raw record to a Comparable. Malformed numbers become 0 and
// join keys are lowercased and trimmed. It never fails.
func Normalize(raw RawRecord) Comparable {
	return Comparable{
		Month:               strings.TrimSpace(str(lookup(raw, monthKeys))),
		Town:                NormalizeKey(str(lookup(raw, townKeys))),
		FlatType:            NormalizeKey(str(lookup(raw, flatTypeKeys))),
		FloorAreaSqm:        Number(lookup(raw, floorAreaKeys)),
		RemainingLeaseYears: LeaseYears(lookup(raw, leaseKeys)),
		ResalePrice:         Number(lookup(raw, resalePriceKeys)),
		StoreyRange:         strings.TrimSpace(str(lookup(raw, storeyKeys))),
	}
}

// NormalizeAll normalizes every record in pool.
func NormalizeAll(pool []RawRecord) []Comparable {
	out := make([]Comparable, 0, len(pool))
	for _, raw := range pool {
		out = append(out, Normalize(raw))
	}
	return out
}

// NormalizeKey lowercases and trims a join key.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Number coerces v to a finite float64, returning 0 when v is not numeric.
func Number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// LeaseYears coerces a remaining-lease value to decimal years. Besides plain
// numbers it accepts the upstream text form "61 years 04 months".
func LeaseYears(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return Number(v)
	}
	if m := leaseTextRe.FindStringSubmatch(s); m != nil {
		years, _ := strconv.Atoi(m[1])
		months := 0
		if m[2] != "" {
			months, _ = strconv.Atoi(m[2])
		}
		return float64(years) + float64(months)/12
	}
	return Number(s)
}

func lookup(raw RawRecord, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}
