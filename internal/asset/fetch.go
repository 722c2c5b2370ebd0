package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is wrapped by fetchers when the asset does not exist.
var ErrNotFound = errors.New("asset not found")

// Fetcher returns the raw bytes behind an absolute URL. Implementations must
// be safe for concurrent use with distinct URLs.
type Fetcher interface {
	Fetch(ctx context.Context, u URL) ([]byte, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, u URL) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, u URL) ([]byte, error) { return f(ctx, u) }

// HTTPFetcher downloads assets over http(s). Timeouts are enforced here and
// surface as ordinary fetch errors.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	log      *zap.Logger
}

func NewHTTPFetcher(timeout time.Duration, maxBytes int64, log *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		log:      log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, u URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", u, err)
	}
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("get %s: %w", u, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("get %s: status %d", u, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("get %s: body exceeds %d bytes", u, f.maxBytes)
	}
	f.log.Debug("asset downloaded",
		zap.String("url", u.String()),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	)
	return data, nil
}

// FileFetcher reads file:// URLs. With a non-empty root, paths outside it
// are refused.
type FileFetcher struct {
	root string
}

func NewFileFetcher(root string) *FileFetcher {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &FileFetcher{root: root}
}

func (f *FileFetcher) Fetch(ctx context.Context, u URL) ([]byte, error) {
	if u.Scheme() != "file" {
		return nil, fmt.Errorf("%s: %w", u, ErrBadScheme)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.FromSlash(u.Path())
	if f.root != "" {
		rel, err := filepath.Rel(f.root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s: outside asset root %s", u, f.root)
		}
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", u, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return data, nil
}

// SchemeFetcher dispatches on the URL scheme.
type SchemeFetcher map[string]Fetcher

func (m SchemeFetcher) Fetch(ctx context.Context, u URL) ([]byte, error) {
	f, ok := m[u.Scheme()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", u, ErrBadScheme)
	}
	return f.Fetch(ctx, u)
}
