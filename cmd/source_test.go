package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hdb-fairness/internal/config"
	"github.com/sells-group/hdb-fairness/internal/resale"
)

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{
			BaseURL:             "https://data.gov.sg",
			ResourceID:          "d_test",
			PageSize:            100,
			Concurrency:         2,
			TimeoutSecs:         5,
			BreakerThreshold:    3,
			BreakerCooldownSecs: 10,
		},
	}
}

func TestNewSource_FilePool(t *testing.T) {
	src, err := newSource(context.Background(), testConfig(), writePoolFixture(t, "pool.csv", bedokPool))
	require.NoError(t, err)

	fs, ok := src.(*resale.FileSource)
	require.True(t, ok, "expected a file source, got %T", src)
	assert.Equal(t, 4, fs.Len())
}

func TestNewSource_MissingFile(t *testing.T) {
	_, err := newSource(context.Background(), testConfig(), "/nonexistent/pool.csv")
	assert.Error(t, err)
}

func TestNewSource_Datastore(t *testing.T) {
	src, err := newSource(context.Background(), testConfig(), "")
	require.NoError(t, err)
	_, ok := src.(*resale.Client)
	assert.True(t, ok, "expected a datastore client, got %T", src)
}
