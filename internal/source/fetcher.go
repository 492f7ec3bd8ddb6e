package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/nurserymap/internal/metrics"
)

// DefaultMaxBytes caps a single source download.
const DefaultMaxBytes int64 = 64 << 20

// Fetcher retrieves the raw bytes stored at a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Scheme returns the lower-cased URL scheme of location. Plain paths, with
// or without a Windows drive letter, report "file".
func Scheme(location string) string {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// Mux routes fetches to a Fetcher by URL scheme.
type Mux struct {
	fetchers map[string]Fetcher
	metrics  *metrics.Metrics
}

// NewMux returns an empty Mux. m may be nil.
func NewMux(m *metrics.Metrics) *Mux {
	return &Mux{fetchers: make(map[string]Fetcher), metrics: m}
}

// Handle registers f for each scheme.
func (m *Mux) Handle(f Fetcher, schemes ...string) {
	for _, s := range schemes {
		m.fetchers[strings.ToLower(s)] = f
	}
}

// Fetch implements Fetcher.
func (m *Mux) Fetch(ctx context.Context, location string) ([]byte, error) {
	scheme := Scheme(location)
	f, ok := m.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	start := time.Now()
	data, err := f.Fetch(ctx, location)
	m.metrics.ObserveFetch(scheme, time.Since(start), err)
	return data, err
}

// HTTPFetcher downloads http and https locations.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
}

// Fetch implements Fetcher. Non-2xx responses are errors; 404 and 410
// report ErrSourceNotFound.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, location)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, location, resp.StatusCode)
	}

	return readLimited(resp.Body, f.maxBytes(), location)
}

func (f *HTTPFetcher) maxBytes() int64 {
	if f.MaxBytes > 0 {
		return f.MaxBytes
	}
	return DefaultMaxBytes
}

// FileFetcher reads file:// URLs and plain paths. Relative paths resolve
// against Root when it is set.
type FileFetcher struct {
	Root     string
	MaxBytes int64
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := location
	if strings.HasPrefix(strings.ToLower(location), "file:") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
		}
		path = u.Path
		if path == "" {
			path = u.Opaque
		}
	}
	if f.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, path)
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, location)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	defer func() { _ = file.Close() }()

	max := f.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	return readLimited(file, max, location)
}

func readLimited(r io.Reader, max int64, location string) ([]byte, error) {
	data, err := io.ReadAll(&LimitedReader{Reader: r, Max: max})
	if errors.Is(err, ErrSourceTooLarge) {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	return data, nil
}
