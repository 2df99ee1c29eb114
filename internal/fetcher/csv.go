package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads r row by row and sends each row to the returned channel.
// Errors arrive on the error channel. Both channels are closed when the
// reader is exhausted or ctx ends.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// RowMap pairs each cell of row with the header column of the same index.
// Header names are trimmed and lowercased. Missing cells are omitted and
// extra cells are ignored.
func RowMap(header, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if i >= len(row) {
			break
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		m[key] = row[i]
	}
	return m
}
