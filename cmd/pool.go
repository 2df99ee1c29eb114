package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hdb-fairness/internal/fairness"
)

var (
	poolTown     string
	poolFlatType string
	poolOutput   string
	poolInput    string
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Export the normalized comparable pool for a town and flat type",
	Long: `Fetches matching resale transactions, normalizes them and writes them
as CSV, or JSON when --output ends in .json. Writes to stdout by default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("pool"); err != nil {
			return err
		}
		if strings.TrimSpace(poolTown) == "" || strings.TrimSpace(poolFlatType) == "" {
			return eris.New("pool: --town and --flat-type are required")
		}

		src, err := newSource(ctx, cfg, poolInput)
		if err != nil {
			return eris.Wrap(err, "pool: init source")
		}

		raw, err := src.Records(ctx, poolTown, poolFlatType)
		if err != nil {
			return eris.Wrap(err, "pool: load transactions")
		}
		comps := fairness.NormalizeAll(raw)

		if poolOutput == "" {
			err = writePool(cmd.OutOrStdout(), poolOutput, comps)
		} else {
			err = writePoolFile(poolOutput, comps)
		}
		if err != nil {
			return err
		}

		zap.L().Info("pool: exported",
			zap.String("town", poolTown),
			zap.String("flat_type", poolFlatType),
			zap.Int("records", len(comps)),
			zap.String("output", poolOutput),
		)
		return nil
	},
}

// writePool writes comps as JSON when name ends in .json and as CSV otherwise.
func writePool(w io.Writer, name string, comps []fairness.Comparable) error {
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		return writePoolJSON(w, comps)
	}
	return writePoolCSV(w, comps)
}

// writePoolFile creates path and writes comps to it. A failed close is
// reported since it can drop buffered data.
func writePoolFile(path string, comps []fairness.Comparable) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pool: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "pool: close %s", path)
		}
	}()
	return writePool(f, path, comps)
}

var poolHeader = []string{
	"month", "town", "flat_type", "storey_range",
	"floor_area_sqm", "remaining_lease_years", "resale_price",
}

// writePoolCSV writes comps with snake_case headers that LoadFile reads back.
func writePoolCSV(w io.Writer, comps []fairness.Comparable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(poolHeader); err != nil {
		return eris.Wrap(err, "pool: write header")
	}
	for _, c := range comps {
		row := []string{
			c.Month, c.Town, c.FlatType, c.StoreyRange,
			formatFloat(c.FloorAreaSqm),
			formatFloat(c.RemainingLeaseYears),
			formatFloat(c.ResalePrice),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "pool: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "pool: flush csv")
}

func writePoolJSON(w io.Writer, comps []fairness.Comparable) error {
	if comps == nil {
		comps = []fairness.Comparable{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(comps), "pool: encode json")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func init() {
	poolCmd.Flags().StringVar(&poolTown, "town", "", "town to export (required)")
	poolCmd.Flags().StringVar(&poolFlatType, "flat-type", "", "flat type to export (required)")
	poolCmd.Flags().StringVar(&poolOutput, "output", "", "output file (.csv or .json); stdout when empty")
	poolCmd.Flags().StringVar(&poolInput, "pool", "", "read from a local export instead of data.gov.sg")
	rootCmd.AddCommand(poolCmd)
}
