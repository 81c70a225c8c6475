// internal/lobby/directory.go
package lobby

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionlobby/flb/internal/platform"
)

// DefaultRefreshInterval is used when the settings document does not
// specify one.
const DefaultRefreshInterval = 30 * time.Second

// Snapshot is an immutable, timestamped copy of the decoded lobby list.
// Readers hold a reference to the whole snapshot, never a view into
// mutable state.
type Snapshot struct {
	Lobbies     []*Record
	CapturedAt  time.Time
	PlayerCount int
	LobbyCount  int
}

// Options tune which lobbies a refresh keeps.
type Options struct {
	// IncludeSelf keeps the lobby hosted by the logged-in account.
	IncludeSelf bool
	// IncludeFull keeps lobbies with no open slots.
	IncludeFull bool
	// IncludePrivate keeps private, locked and non-friend lobbies.
	IncludePrivate bool
}

// Directory owns the authoritative in-memory lobby snapshot and the
// periodic refresh loop that rebuilds it from the platform.
type Directory struct {
	log      *logrus.Logger
	handler  platform.Handler
	interval time.Duration
	opts     Options

	snap atomic.Pointer[Snapshot]
}

// NewDirectory builds a Directory polling the given handler. A
// non-positive interval falls back to DefaultRefreshInterval.
func NewDirectory(log *logrus.Logger, handler platform.Handler, interval time.Duration, opts Options) *Directory {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	d := &Directory{
		log:      log,
		handler:  handler,
		interval: interval,
		opts:     opts,
	}
	d.snap.Store(&Snapshot{CapturedAt: time.Now().UTC()})
	return d
}

// Interval returns the configured refresh interval.
func (d *Directory) Interval() time.Duration { return d.interval }

// Snapshot returns the current snapshot. The result is immutable and
// safe to hold across refreshes.
func (d *Directory) Snapshot() *Snapshot {
	return d.snap.Load()
}

// Run refreshes the directory on a fixed interval until ctx is
// cancelled. A failed tick never delays or skips the next one.
func (d *Directory) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			d.log.Info("lobby directory stopped")
			return
		case <-ticker.C:
			d.Refresh(ctx)
		}
	}
}

// Refresh rebuilds the snapshot from the platform. When the session is
// not ready the tick is skipped quietly; any failure leaves the
// previous snapshot untouched.
func (d *Directory) Refresh(ctx context.Context) {
	if !d.handler.IsReady() {
		d.log.Warn("session not ready, skipping lobby fetch")
		return
	}

	d.log.Info("fetching lobbies...")
	raw, err := d.handler.Lobbies(ctx, false)
	if err != nil {
		d.log.WithError(err).Error("failed to fetch lobbies")
		return
	}

	lobbies := make([]*Record, 0, len(raw))
	players := 0
	for _, l := range raw {
		md := DecodeMetadata(l)
		if !md.Open || md.Record == nil {
			continue
		}
		if l.OwnedBySelf() && !d.opts.IncludeSelf {
			continue
		}
		if !d.opts.IncludePrivate && d.isPrivate(md.Record) {
			continue
		}
		if !d.opts.IncludeFull && md.Record.Full() {
			continue
		}
		lobbies = append(lobbies, md.Record)
		players += md.Record.PlayerCount
	}

	snap := &Snapshot{
		Lobbies:     lobbies,
		CapturedAt:  time.Now().UTC(),
		PlayerCount: players,
		LobbyCount:  len(lobbies),
	}
	d.snap.Store(snap)
	d.log.WithFields(logrus.Fields{
		"lobbies": snap.LobbyCount,
		"players": snap.PlayerCount,
	}).Info("published lobby snapshot")
}

// Filter re-filters already-decoded records without a network round
// trip, applying the same visibility and fullness rules as Refresh.
// isFriend may be nil, in which case friends-only lobbies are private.
func Filter(lobbies []*Record, includeFull, includePrivate bool, isFriend func(uint64) bool) []*Record {
	out := make([]*Record, 0, len(lobbies))
	for _, rec := range lobbies {
		if !includePrivate && IsPrivate(rec, isFriend) {
			continue
		}
		if !includeFull && rec.Full() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// IsPrivate resolves a record's effective privacy. A nil record is
// always private; friends-only resolves through the friends capability
// keyed by the host id.
func IsPrivate(rec *Record, isFriend func(uint64) bool) bool {
	if rec == nil {
		return true
	}
	switch rec.Privacy {
	case VisibilityPrivate, VisibilityLocked:
		return true
	case VisibilityFriendsOnly:
		return isFriend == nil || !isFriend(rec.HostID)
	default:
		return false
	}
}

func (d *Directory) isPrivate(rec *Record) bool {
	return IsPrivate(rec, d.handler.IsFriend)
}
