package main

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hdb-fairness/internal/fairness"
)

func sampleResult() fairness.Result {
	dev := 0.05
	return fairness.Result{
		FairPrice:    476190.48,
		BandLow:      460000,
		BandHigh:     492381,
		DeviationPct: &dev,
		Label:        fairness.LabelFair,
		Threshold:    0.08,
		PoolSize:     12,
		Used:         12,
		Comps: []fairness.Comparable{
			{Month: "2024-03", StoreyRange: "04 TO 06", FloorAreaSqm: 90, RemainingLeaseYears: 70, ResalePrice: 480000, AdjustedPricePerSqm: 5333.33, Weight: 1},
		},
	}
}

func undefinedResult() fairness.Result {
	return fairness.Result{
		FairPrice: math.NaN(),
		BandLow:   math.NaN(),
		BandHigh:  math.NaN(),
		Label:     fairness.LabelInsufficientData,
		Sigma:     math.NaN(),
		Threshold: math.NaN(),
		PoolSize:  2,
		Comps:     []fairness.Comparable{},
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "S$480,000", money(480000))
	assert.Equal(t, "S$1,234,568", money(1234567.6))
	assert.Equal(t, "S$0", money(0))
}

func TestValidFormat(t *testing.T) {
	assert.True(t, validFormat("table"))
	assert.True(t, validFormat("json"))
	assert.True(t, validFormat("yaml"))
	assert.False(t, validFormat("xml"))
	assert.False(t, validFormat(""))
}

func TestWriteResult_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "table", bedokSubject(500000), sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Fair price")
	assert.Contains(t, out, "S$476,190")
	assert.Contains(t, out, "S$460,000 - S$492,381")
	assert.Contains(t, out, "+5.0%")
	assert.Contains(t, out, "04 TO 06")
}

func TestWriteResult_TableUndefined(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "table", bedokSubject(500000), undefinedResult()))

	out := buf.String()
	assert.Contains(t, out, "Insufficient Data")
	assert.Contains(t, out, "2 matching")
	assert.NotContains(t, out, "Fair price")
}

func TestWriteResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "json", bedokSubject(500000), undefinedResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Nil(t, got["fairPrice"])
	assert.Equal(t, "Insufficient Data", got["label"])
	assert.Equal(t, []any{}, got["comps"])
}

func TestWriteResult_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "yaml", bedokSubject(500000), sampleResult()))

	var got resultView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Fair", got.Label)
	require.NotNil(t, got.FairPrice)
	assert.InDelta(t, 476190.48, *got.FairPrice, 1e-9)
	require.Len(t, got.Comps, 1)
	assert.Equal(t, "2024-03", got.Comps[0].Month)
}

func TestWriteResult_YAMLOmitsUndefined(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "yaml", bedokSubject(500000), undefinedResult()))

	out := buf.String()
	assert.NotContains(t, out, "fair_price")
	assert.NotContains(t, out, "threshold")
	assert.Contains(t, out, "label: Insufficient Data")
}

func TestWriteResult_UnknownFormat(t *testing.T) {
	assert.Error(t, writeResult(&bytes.Buffer{}, "xml", bedokSubject(1), sampleResult()))
}
