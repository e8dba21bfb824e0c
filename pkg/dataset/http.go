package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/strataviz/strataflow/pkg/cache"
)

// httpNamespace scopes cached dataset bodies away from other HTTP users
// of the same cache directory.
const httpNamespace = "dataset:"

// HTTPOptions configures an HTTP dataset source.
type HTTPOptions struct {
	// Client is the HTTP client to use. Defaults to a client with a
	// 30 second timeout.
	Client *http.Client

	// Cache, when set, stores fetched bodies so repeated loads within
	// the HTTP TTL skip the network entirely.
	Cache cache.Cache
}

// HTTPSource loads records from a JSON endpoint. Transient failures (5xx
// responses, network errors) are retried with backoff; successful bodies
// are cached when a cache is configured.
type HTTPSource struct {
	url    string
	client *http.Client
	cache  cache.Cache
	keyer  cache.Keyer
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source that fetches records from url.
func NewHTTPSource(url string, opts HTTPOptions) *HTTPSource {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		url:    url,
		client: client,
		cache:  opts.Cache,
		keyer:  cache.NewDefaultKeyer(),
	}
}

// Load fetches and decodes the record payload.
func (s *HTTPSource) Load(ctx context.Context) ([]Record, error) {
	key := s.keyer.HTTPKey(httpNamespace, s.url)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return ReadJSON(bytes.NewReader(data))
		}
	}

	var body []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var fetchErr error
		body, fetchErr = s.fetch(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}

	records, err := ReadJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.url, err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, body, cache.TTLHTTP)
	}
	return records, nil
}

// fetch performs one GET. Server-side failures come back retryable so the
// backoff loop tries again; client errors fail immediately.
func (s *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, cache.Retryable(fmt.Errorf("%w: server returned %s", cache.ErrNetwork, resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Close implements Source. HTTP sources hold no persistent resources.
func (s *HTTPSource) Close(ctx context.Context) error { return nil }
