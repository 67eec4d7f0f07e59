package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxArchiveBytes caps a downloaded static GTFS archive.
const maxArchiveBytes = 512 << 20

var errArchiveTooLarge = errors.New("archive exceeds download limit")

// archiveFetcher downloads static GTFS archives for build-graph.
type archiveFetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

func newFetcher(timeout time.Duration) *archiveFetcher {
	return &archiveFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxArchiveBytes,
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// fetch downloads the archive at url in full.
func (f *archiveFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}
	req.Header.Set("Accept", "application/zip, application/octet-stream")
	req.Header.Set("User-Agent", "smartbus-build-graph")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download GTFS archive %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("download GTFS archive %s: HTTP %d: %s",
			url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read GTFS archive %s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", url, errArchiveTooLarge, f.maxBytes)
	}
	return data, nil
}
