package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote catalog data.
// Catalog documents are parsed streaming, so a body reader is the whole
// contract.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
