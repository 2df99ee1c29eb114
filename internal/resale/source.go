// Package resale supplies HDB resale transactions to the fairness estimator,
// either from the data.gov.sg datastore API or from a local export file.
package resale

import (
	"context"

	"github.com/sells-group/hdb-fairness/internal/fairness"
)

// Source returns raw transactions for a town and flat type. Implementations
// may return extra records; the estimator filters again.
type Source interface {
	Records(ctx context.Context, town, flatType string) ([]fairness.RawRecord, error)
}
