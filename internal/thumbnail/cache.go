// internal/thumbnail/cache.go
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long a cached thumbnail stays valid.
const DefaultTTL = 1800 * time.Second

// waitPoll is how often a coalesced caller re-checks an in-flight id.
const waitPoll = 500 * time.Millisecond

// ErrNotFound is returned whenever a thumbnail cannot be served: cache
// disabled, unknown mod, or any remote failure. Never fatal to callers.
var ErrNotFound = errors.New("thumbnail: not found")

// Entry is a readable cached thumbnail. The path is valid only while
// its encoded expiry is in the future.
type Entry struct {
	ModID  int64
	Path   string
	Mature bool
}

// Cache is the disk-backed thumbnail cache. A missing bearer token
// disables it entirely: every lookup reports ErrNotFound without
// touching the network.
type Cache struct {
	log     *logrus.Logger
	dir     string
	ttl     time.Duration
	fetcher Fetcher
	client  *http.Client

	mu       sync.Mutex
	inflight map[int64]struct{}

	now func() time.Time
}

// NewCache builds a Cache rooted at dir. fetcher may be nil to disable
// remote fetches (no API token available).
func NewCache(log *logrus.Logger, dir string, fetcher Fetcher) *Cache {
	return &Cache{
		log:      log,
		dir:      dir,
		ttl:      DefaultTTL,
		fetcher:  fetcher,
		client:   &http.Client{Timeout: 30 * time.Second},
		inflight: make(map[int64]struct{}),
		now:      time.Now,
	}
}

// Enabled reports whether remote fetches are possible.
func (c *Cache) Enabled() bool { return c.fetcher != nil }

// Get returns a cached thumbnail for modID, fetching remotely on a
// miss. At most one remote fetch is in flight per id; concurrent
// callers wait and then re-run the lookup so they never observe a
// half-written file.
func (c *Cache) Get(ctx context.Context, modID int64) (*Entry, error) {
	if err := c.reserve(ctx, modID); err != nil {
		return nil, err
	}
	defer c.release(modID)

	entry, err := c.lookup(ctx, modID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.WithError(err).Errorf("error getting thumbnail for mod %d", modID)
		}
		return nil, ErrNotFound
	}
	return entry, nil
}

// reserve atomically marks modID as in flight, waiting out any prior
// request for the same id. The check-and-mark is a single step under
// the lock; there is no separate contains-then-add window.
func (c *Cache) reserve(ctx context.Context, modID int64) error {
	for {
		c.mu.Lock()
		if _, busy := c.inflight[modID]; !busy {
			c.inflight[modID] = struct{}{}
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		c.log.Infof("thumbnail for mod %d already in flight, waiting...", modID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitPoll):
		}
	}
}

// release deregisters modID. Deferred on every exit path so a failed
// fetch can never leave the id permanently blocked.
func (c *Cache) release(modID int64) {
	c.mu.Lock()
	delete(c.inflight, modID)
	c.mu.Unlock()
}

// lookup serves from disk when a live entry exists, otherwise fetches
// remotely. Expired and malformed files are deleted first, keeping at
// most one file per id on disk.
func (c *Cache) lookup(ctx context.Context, modID int64) (*Entry, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("thumbnail: creating cache dir: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(c.dir, fmt.Sprintf("%d-*%s", modID, fileExt)))
	if err != nil {
		return nil, err
	}
	for _, path := range matches {
		id, expiry, mature, err := decodeName(path)
		if err != nil || id != modID {
			// Malformed name: treat as a miss and clear it out.
			c.log.Warnf("removing unreadable cache file %s", filepath.Base(path))
			_ = os.Remove(path)
			continue
		}
		if c.now().Unix() >= expiry {
			c.log.Infof("cached thumbnail for mod %d expired, refetching", modID)
			_ = os.Remove(path)
			continue
		}
		c.log.Infof("found cached thumbnail for mod %d", modID)
		return &Entry{ModID: modID, Path: path, Mature: mature}, nil
	}

	return c.fetch(ctx, modID)
}

// fetch resolves the remote location, downloads the image and installs
// it under the canonical name via a unique temp file, so partial writes
// are never observable under the canonical path.
func (c *Cache) fetch(ctx context.Context, modID int64) (*Entry, error) {
	if c.fetcher == nil {
		c.log.Warn("thumbnail cache is disabled (no API token), reporting miss")
		return nil, ErrNotFound
	}

	c.log.Infof("remotely fetching thumbnail for mod %d", modID)
	remote, err := c.fetcher.Thumbnail(ctx, modID)
	if err != nil {
		return nil, fmt.Errorf("resolving remote thumbnail: %w", err)
	}

	data, err := download(ctx, c.client, remote.URL)
	if err != nil {
		return nil, err
	}

	tmp := filepath.Join(c.dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing thumbnail: %w", err)
	}

	expiry := c.now().Add(c.ttl).Unix()
	path := filepath.Join(c.dir, encodeName(modID, expiry, remote.Mature))
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("installing thumbnail: %w", err)
	}
	return &Entry{ModID: modID, Path: path, Mature: remote.Mature}, nil
}
