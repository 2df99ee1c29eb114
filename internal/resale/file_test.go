package resale

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/hdb-fairness/internal/fairness"
)

const sampleCSV = `month,town,flat_type,block,street_name,storey_range,floor_area_sqm,flat_model,lease_commence_date,remaining_lease,resale_price
2024-01,BEDOK,4 ROOM,101,BEDOK NTH AVE 4,04 TO 06,92,New Generation,1978,53 years 04 months,455000
2024-02,BEDOK,4 ROOM,102,BEDOK NTH AVE 4,10 TO 12,91,New Generation,1978,53 years 03 months,470000
2024-02,TAMPINES,4 ROOM,201,TAMPINES ST 21,01 TO 03,104,Model A,1984,59 years,520000
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_CSV(t *testing.T) {
	path := writeFile(t, "resale.csv", sampleCSV)

	recs, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "BEDOK", recs[0]["town"])

	c := fairness.Normalize(recs[0])
	assert.Equal(t, 92.0, c.FloorAreaSqm)
	assert.InDelta(t, 53+4.0/12, c.RemainingLeaseYears, 1e-12)
	assert.Equal(t, 455000.0, c.ResalePrice)
	assert.Equal(t, "04 TO 06", c.StoreyRange)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "pool.json", `[
		{"town":"Bedok","flatType":"4 ROOM","floorAreaSqm":90,"remainingLeaseYears":70,"resalePrice":480000},
		{"town":"Bedok","flatType":"4 ROOM","floorAreaSqm":"88","remainingLeaseYears":"71.5","resalePrice":"490000"}
	]`)

	recs, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	comps := fairness.NormalizeAll(recs)
	assert.Equal(t, 90.0, comps[0].FloorAreaSqm)
	assert.Equal(t, 71.5, comps[1].RemainingLeaseYears)
}

func TestLoadFile_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"month", "town", "flat_type", "floor_area_sqm", "remaining_lease", "resale_price"},
		{"2024-01", "BEDOK", "4 ROOM", "90", "70 years", "480000"},
	} {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "pool.xlsx")
	require.NoError(t, f.Save(path))

	recs, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 480000.0, fairness.Normalize(recs[0]).ResalePrice)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(context.Background(), "pool.parquet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resale: open csv")

	path := writeFile(t, "bad.json", `{"not":"an array"}`)
	_, err = LoadFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestFileSource(t *testing.T) {
	path := writeFile(t, "resale.csv", sampleCSV)

	src, err := NewFileSource(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	recs, err := src.Records(context.Background(), " bedok", "4 Room")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = src.Records(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = src.Records(context.Background(), "punggol", "4 room")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
