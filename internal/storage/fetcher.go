package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"posegen/internal/infra"
)

const (
	defaultMaxDownloadBytes = 32 << 20
	defaultFetchConcurrency = 2
)

// Download is one fetched output.
type Download struct {
	URL       string
	MIMEType  string
	Extension string
	Data      []byte
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	HTTPClient  *http.Client
	MaxBytes    int64
	Concurrency int
	Logger      *infra.Logger
}

// Fetcher downloads generated outputs from the URLs reported by the service.
type Fetcher struct {
	client      *http.Client
	maxBytes    int64
	concurrency int
	logger      *infra.Logger
}

// NewFetcher constructs a Fetcher with defaults applied.
func NewFetcher(opts FetcherOptions) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxDownloadBytes
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Fetcher{client: client, maxBytes: maxBytes, concurrency: concurrency, logger: logger}
}

// Fetch downloads a single URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Download, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Download{}, errors.New("storage: url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Download{}, fmt.Errorf("storage: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Download{}, fmt.Errorf("storage: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return Download{}, fmt.Errorf("storage: fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Download{}, fmt.Errorf("storage: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return Download{}, fmt.Errorf("storage: %s exceeds %d bytes", rawURL, f.maxBytes)
	}
	mimeType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	f.logger.Debug().Str("url", rawURL).Int("bytes", len(data)).Str("mime", mimeType).Msg("storage: fetched output")
	return Download{
		URL:       rawURL,
		MIMEType:  mimeType,
		Extension: ExtensionFor(mimeType, rawURL),
		Data:      data,
	}, nil
}

// FetchAll downloads every URL and returns the results in input order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Download, error) {
	out := make([]Download, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			d, err := f.Fetch(gctx, u)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtensionFor picks a file extension from the MIME type, falling back to the
// URL path and finally .png.
func ExtensionFor(mimeType, rawURL string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if rawURL != "" {
		if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
			rawURL = rawURL[:i]
		}
		if ext := strings.ToLower(path.Ext(rawURL)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".png"
}
