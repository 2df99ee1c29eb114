// Package fetcher downloads remote data over HTTP and parses CSV, JSON and
// XLSX payloads into rows.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
