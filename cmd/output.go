package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hdb-fairness/internal/fairness"
)

var printer = message.NewPrinter(language.English)

func validFormat(format string) bool {
	switch format {
	case "table", "json", "yaml":
		return true
	}
	return false
}

// resultView is the YAML shape of a result; undefined numbers are omitted.
type resultView struct {
	Subject      fairness.Subject `yaml:"subject"`
	Label        string           `yaml:"label"`
	FairPrice    *float64         `yaml:"fair_price,omitempty"`
	BandLow      *float64         `yaml:"band_low,omitempty"`
	BandHigh     *float64         `yaml:"band_high,omitempty"`
	DeviationPct *float64         `yaml:"deviation_pct,omitempty"`
	Threshold    *float64         `yaml:"threshold,omitempty"`
	PoolSize     int              `yaml:"pool_size"`
	Used         int              `yaml:"used"`
	Comps        []compView       `yaml:"comps"`
}

type compView struct {
	Month               string  `yaml:"month"`
	StoreyRange         string  `yaml:"storey_range,omitempty"`
	FloorAreaSqm        float64 `yaml:"floor_area_sqm"`
	RemainingLeaseYears float64 `yaml:"remaining_lease_years"`
	ResalePrice         float64 `yaml:"resale_price"`
	AdjustedPricePerSqm float64 `yaml:"adjusted_price_per_sqm"`
	Weight              float64 `yaml:"weight"`
}

func newResultView(subject fairness.Subject, res fairness.Result) resultView {
	v := resultView{
		Subject:      subject,
		Label:        string(res.Label),
		FairPrice:    defined(res.FairPrice),
		BandLow:      defined(res.BandLow),
		BandHigh:     defined(res.BandHigh),
		DeviationPct: res.DeviationPct,
		Threshold:    defined(res.Threshold),
		PoolSize:     res.PoolSize,
		Used:         res.Used,
		Comps:        make([]compView, 0, len(res.Comps)),
	}
	for _, c := range res.Comps {
		v.Comps = append(v.Comps, compView{
			Month:               c.Month,
			StoreyRange:         c.StoreyRange,
			FloorAreaSqm:        c.FloorAreaSqm,
			RemainingLeaseYears: c.RemainingLeaseYears,
			ResalePrice:         c.ResalePrice,
			AdjustedPricePerSqm: c.AdjustedPricePerSqm,
			Weight:              c.Weight,
		})
	}
	return v
}

func defined(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// writeResult renders res in the given format.
func writeResult(w io.Writer, format string, subject fairness.Subject, res fairness.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "output: encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newResultView(subject, res)); err != nil {
			return eris.Wrap(err, "output: encode yaml")
		}
		return eris.Wrap(enc.Close(), "output: close yaml")
	case "table":
		return writeTable(w, subject, res)
	default:
		return eris.Errorf("output: unknown format %q", format)
	}
}

func writeTable(w io.Writer, subject fairness.Subject, res fairness.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Subject\t%s %s, %.0f sqm, %.1f years left\n", subject.Town, subject.FlatType, subject.FloorAreaSqm, subject.RemainingLeaseYears)
	fmt.Fprintf(tw, "Asking\t%s\n", money(subject.AskingPrice))
	fmt.Fprintf(tw, "Label\t%s\n", res.Label)

	if !res.Defined() {
		fmt.Fprintf(tw, "Comparables\t%d matching (need more)\n", res.PoolSize)
		return eris.Wrap(tw.Flush(), "output: flush table")
	}

	fmt.Fprintf(tw, "Fair price\t%s\n", money(res.FairPrice))
	fmt.Fprintf(tw, "Band\t%s - %s\n", money(res.BandLow), money(res.BandHigh))
	if res.DeviationPct != nil {
		fmt.Fprintf(tw, "Deviation\t%+.1f%% (threshold ±%.1f%%)\n", *res.DeviationPct*100, res.Threshold*100)
	}
	fmt.Fprintf(tw, "Comparables\t%d matching, %d used\n", res.PoolSize, res.Used)

	if len(res.Comps) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "MONTH\tSTOREY\tAREA\tLEASE\tPRICE\tADJ PSM\tWEIGHT")
		for _, c := range res.Comps {
			fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.1f\t%s\t%s\t%.3f\n",
				c.Month, c.StoreyRange, c.FloorAreaSqm, c.RemainingLeaseYears,
				money(c.ResalePrice), money(c.AdjustedPricePerSqm), c.Weight)
		}
	}

	return eris.Wrap(tw.Flush(), "output: flush table")
}

// money formats an amount as whole Singapore dollars with separators.
func money(v float64) string {
	return printer.Sprintf("S$%d", int64(math.Round(v)))
}
