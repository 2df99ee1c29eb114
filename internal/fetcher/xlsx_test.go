package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Resale": {
			{"month", "town", "resale_price"},
			{"2024-01", "BEDOK", "480000"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"month", "town", "resale_price"}, rows[0])
	assert.Equal(t, []string{"2024-01", "BEDOK", "480000"}, rows[1])

	rows, err = ReadXLSX(path, XLSXOptions{SheetName: "Resale"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReadXLSX_Errors(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = ReadXLSX(filepath.Join(t.TempDir(), "missing.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")

	bad := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o644))
	_, err = ReadXLSX(bad, XLSXOptions{})
	require.Error(t, err)
}
