// internal/thumbnail/cache_test.go
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// countingFetcher serves a fixed remote and counts resolutions.
type countingFetcher struct {
	url    string
	mature bool
	err    error
	calls  atomic.Int64
}

func (f *countingFetcher) Thumbnail(ctx context.Context, modID int64) (Remote, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Remote{}, f.err
	}
	return Remote{ModID: modID, URL: f.url, Mature: f.mature}, nil
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake image bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestCache(t *testing.T, fetcher Fetcher) *Cache {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewCache(log, t.TempDir(), fetcher)
}

func TestGetFetchesOnceThenServesFromDisk(t *testing.T) {
	srv := imageServer(t)
	fetcher := &countingFetcher{url: srv.URL}
	c := newTestCache(t, fetcher)

	first, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	second, err := c.Get(context.Background(), 42)
	require.NoError(t, err)

	require.Equal(t, first.Path, second.Path)
	require.EqualValues(t, 1, fetcher.calls.Load(), "second lookup must be served from disk")
}

func TestGetWritesCanonicalMatureName(t *testing.T) {
	srv := imageServer(t)
	fetcher := &countingFetcher{url: srv.URL, mature: true}
	c := newTestCache(t, fetcher)

	before := time.Now().Unix()
	entry, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, entry.Mature)

	id, expiry, nsfw, err := decodeName(entry.Path)
	require.NoError(t, err)
	require.EqualValues(t, 42, id)
	require.True(t, nsfw)
	ttl := int64(DefaultTTL / time.Second)
	require.GreaterOrEqual(t, expiry, before+ttl)
	require.LessOrEqual(t, expiry, time.Now().Unix()+ttl)
	require.True(t, strings.HasSuffix(entry.Path, "-nsfw.png"))
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	srv := imageServer(t)
	fetcher := &countingFetcher{url: srv.URL}
	c := newTestCache(t, fetcher)

	const n = 8
	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := c.Get(context.Background(), 42)
			if err != nil {
				errs[i] = err
				return
			}
			paths[i] = entry.Path
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, paths[0], paths[i], "all callers must see the same entry")
	}
	require.EqualValues(t, 1, fetcher.calls.Load(), "coalescing must allow exactly one remote fetch")
}

func TestExpiredEntryIsDeletedAndRefetched(t *testing.T) {
	srv := imageServer(t)
	fetcher := &countingFetcher{url: srv.URL}
	c := newTestCache(t, fetcher)

	stale := filepath.Join(c.dir, encodeName(42, time.Now().Unix()-10, false))
	require.NoError(t, os.MkdirAll(c.dir, 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	entry, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	require.NotEqual(t, stale, entry.Path)
	require.EqualValues(t, 1, fetcher.calls.Load())

	_, statErr := os.Stat(stale)
	require.True(t, errors.Is(statErr, os.ErrNotExist), "expired file must be deleted")
}

func TestMalformedCacheFileIsAMiss(t *testing.T) {
	srv := imageServer(t)
	fetcher := &countingFetcher{url: srv.URL}
	c := newTestCache(t, fetcher)

	require.NoError(t, os.MkdirAll(c.dir, 0o755))
	bogus := filepath.Join(c.dir, "42-notanumber.png")
	require.NoError(t, os.WriteFile(bogus, []byte("junk"), 0o644))

	entry, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	require.EqualValues(t, 1, fetcher.calls.Load())
	require.NotEqual(t, bogus, entry.Path)
}

func TestDisabledCacheReportsNotFound(t *testing.T) {
	c := newTestCache(t, nil)

	_, err := c.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, c.Enabled())
}

func TestRemoteFailureIsNotFound(t *testing.T) {
	fetcher := &countingFetcher{err: fmt.Errorf("api: %w", ErrNoThumbnail)}
	c := newTestCache(t, fetcher)

	_, err := c.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)

	// The in-flight reservation must have been released.
	done := make(chan struct{})
	go func() {
		_, _ = c.Get(context.Background(), 42)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mod id left permanently reserved after a failed fetch")
	}
}
