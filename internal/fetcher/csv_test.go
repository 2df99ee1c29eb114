package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "month,town\n2024-01,BEDOK\n2024-02,TAMPINES\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"month", "town"}, rows[0])
	assert.Equal(t, []string{"2024-02", "TAMPINES"}, rows[2])
}

func TestStreamCSV_OptionsAndVariableFields(t *testing.T) {
	input := "# exported\n a | b \n1|2|3\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '|',
		Comment:   '#',
		TrimSpace: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, rows[1])
}

func TestStreamCSV_ReadError(t *testing.T) {
	input := "a,b\n\"unterminated,1\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestRowMap(t *testing.T) {
	header := []string{" Month ", "TOWN", "", "resale_price"}
	m := RowMap(header, []string{"2024-01", "BEDOK", "ignored"})
	assert.Equal(t, map[string]string{"month": "2024-01", "town": "BEDOK"}, m)

	m = RowMap([]string{"a"}, []string{"1", "2"})
	assert.Equal(t, map[string]string{"a": "1"}, m)
}
