package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hdb-fairness/internal/fairness"
	"github.com/sells-group/hdb-fairness/internal/resale"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the fair price of one flat",
	Long: `Estimate the fair resale price of a flat from comparable transactions
and label the asking price.

Comparables come from data.gov.sg unless --pool points at a local export.

Examples:
  # Against live data.gov.sg transactions
  estimate --town Bedok --flat-type "4 ROOM" --area 90 --lease 70 --asking 500000

  # Against a CSV export, with the lease in upstream text form
  estimate --town Bedok --flat-type "4 ROOM" --area 92 --lease "61 years 04 months" \
    --asking 480000 --pool resale.csv --format json`,
	RunE: runEstimate,
}

func init() {
	f := estimateCmd.Flags()
	f.String("town", "", "town of the flat (required)")
	f.String("flat-type", "", "flat type, e.g. \"4 ROOM\" (required)")
	f.Float64("area", 0, "floor area in square metres (required)")
	f.String("lease", "", "remaining lease in years, or \"61 years 04 months\" (required)")
	f.Float64("asking", 0, "asking price (required)")
	f.String("pool", "", "local transaction export (.csv, .json, .xlsx)")
	f.Float64("beta-lease", 0, "lease coefficient (overrides config)")
	f.Float64("gamma-log-area", 0, "log-area coefficient (overrides config)")
	f.String("format", "table", "output format: table, json or yaml")

	for _, name := range []string{"town", "flat-type", "area", "lease", "asking"} {
		_ = estimateCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("estimate"); err != nil {
		return err
	}

	flags := cmd.Flags()
	town, _ := flags.GetString("town")
	flatType, _ := flags.GetString("flat-type")
	area, _ := flags.GetFloat64("area")
	lease, _ := flags.GetString("lease")
	asking, _ := flags.GetFloat64("asking")
	poolPath, _ := flags.GetString("pool")
	format, _ := flags.GetString("format")

	if !validFormat(format) {
		return eris.Errorf("estimate: --format must be table, json or yaml (got %q)", format)
	}

	subject := fairness.Subject{
		Town:                strings.TrimSpace(town),
		FlatType:            strings.TrimSpace(flatType),
		FloorAreaSqm:        area,
		RemainingLeaseYears: fairness.LeaseYears(lease),
		AskingPrice:         asking,
	}
	if err := validateSubject(subject); err != nil {
		return err
	}

	coeffs := cfg.Coefficients()
	if flags.Changed("beta-lease") {
		coeffs.BetaLease, _ = flags.GetFloat64("beta-lease")
	}
	if flags.Changed("gamma-log-area") {
		coeffs.GammaLogArea, _ = flags.GetFloat64("gamma-log-area")
	}

	src, err := newSource(ctx, cfg, poolPath)
	if err != nil {
		return eris.Wrap(err, "estimate: init source")
	}

	res, err := estimate(ctx, src, fairness.NewEstimator(cfg.FairnessParams()), subject, coeffs)
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), format, subject, res)
}

// estimate loads the comparable pool for subject and runs the estimator.
func estimate(ctx context.Context, src resale.Source, est *fairness.Estimator, subject fairness.Subject, coeffs fairness.Coefficients) (fairness.Result, error) {
	pool, err := src.Records(ctx, subject.Town, subject.FlatType)
	if err != nil {
		return fairness.Result{}, eris.Wrap(err, "estimate: load transactions")
	}

	res := est.Estimate(subject, pool, coeffs)
	zap.L().Info("estimate: complete",
		zap.String("town", subject.Town),
		zap.String("flat_type", subject.FlatType),
		zap.Int("records", len(pool)),
		zap.Int("pool_size", res.PoolSize),
		zap.String("label", string(res.Label)),
	)
	return res, nil
}

func validateSubject(s fairness.Subject) error {
	var errs []string
	if s.Town == "" {
		errs = append(errs, "--town is required")
	}
	if s.FlatType == "" {
		errs = append(errs, "--flat-type is required")
	}
	if s.FloorAreaSqm <= 0 {
		errs = append(errs, "--area must be > 0")
	}
	if s.RemainingLeaseYears <= 0 {
		errs = append(errs, "--lease must be a positive number of years")
	}
	if s.AskingPrice <= 0 {
		errs = append(errs, "--asking must be > 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("estimate: %s", strings.Join(errs, "; "))
	}
	return nil
}
