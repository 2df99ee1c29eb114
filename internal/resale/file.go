package resale

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hdb-fairness/internal/fairness"
	"github.com/sells-group/hdb-fairness/internal/fetcher"
)

// LoadFile reads a transaction export. Supported formats are CSV with a
// header row, a JSON array of objects, and XLSX whose first sheet has a
// header row.
func LoadFile(ctx context.Context, path string) ([]fairness.RawRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return loadCSV(ctx, path)
	case ".json":
		return loadJSON(ctx, path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, eris.Errorf("resale: unsupported file type %q", ext)
	}
}

func loadCSV(ctx context.Context, path string) ([]fairness.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "resale: open csv")
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})

	var header []string
	var out []fairness.RawRecord
	for row := range rowCh {
		if header == nil {
			header = row
			continue
		}
		out = append(out, fromStrings(fetcher.RowMap(header, row)))
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "resale: read %s", path)
		}
	}
	return out, nil
}

func loadJSON(ctx context.Context, path string) ([]fairness.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "resale: open json")
	}
	defer f.Close() //nolint:errcheck

	ch, errCh := fetcher.DecodeJSONArray[fairness.RawRecord](ctx, f)

	var out []fairness.RawRecord
	for rec := range ch {
		out = append(out, rec)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "resale: read %s", path)
		}
	}
	return out, nil
}

func loadXLSX(path string) ([]fairness.RawRecord, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "resale: read %s", path)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]fairness.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, fromStrings(fetcher.RowMap(rows[0], row)))
	}
	return out, nil
}

func fromStrings(m map[string]string) fairness.RawRecord {
	rec := make(fairness.RawRecord, len(m))
	for k, v := range m {
		rec[k] = v
	}
	return rec
}

// FileSource serves records loaded once from an export file.
type FileSource struct {
	records []fairness.Comparable
	raw     []fairness.RawRecord
}

// NewFileSource loads path and returns a Source over its records.
func NewFileSource(ctx context.Context, path string) (*FileSource, error) {
	raw, err := LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &FileSource{records: fairness.NormalizeAll(raw), raw: raw}, nil
}

// Records returns the loaded records matching town and flatType. Empty
// arguments match everything.
func (s *FileSource) Records(_ context.Context, town, flatType string) ([]fairness.RawRecord, error) {
	town = fairness.NormalizeKey(town)
	flatType = fairness.NormalizeKey(flatType)

	var out []fairness.RawRecord
	for i, c := range s.records {
		if town != "" && c.Town != town {
			continue
		}
		if flatType != "" && c.FlatType != flatType {
			continue
		}
		out = append(out, s.raw[i])
	}
	return out, nil
}

// Len returns the number of loaded records.
func (s *FileSource) Len() int {
	return len(s.raw)
}
