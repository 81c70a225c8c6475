// internal/lobby/directory_test.go
package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionlobby/flb/internal/platform"
)

// fakeHandler scripts the platform capability for directory tests.
type fakeHandler struct {
	ready   bool
	lobbies []platform.Lobby
	err     error
	friends map[uint64]bool
}

func (f *fakeHandler) Connect(ctx context.Context) error { return nil }
func (f *fakeHandler) IsReady() bool                     { return f.ready }

func (f *fakeHandler) Lobbies(ctx context.Context, includePrivate bool) ([]platform.Lobby, error) {
	return f.lobbies, f.err
}

func (f *fakeHandler) IsFriend(id uint64) bool { return f.friends[id] }

func encoded(t *testing.T, rec *Record, open bool, opts ...func(*mapLobby)) platform.Lobby {
	t.Helper()
	m, err := EncodeMetadata(rec, open)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	l := &mapLobby{owner: rec.HostID, data: m}
	for _, o := range opts {
		o(l)
	}
	return l
}

func newTestDirectory(h platform.Handler, opts Options) *Directory {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewDirectory(log, h, time.Second, opts)
}

func TestRefreshSkipsWhenNotReady(t *testing.T) {
	h := &fakeHandler{ready: false}
	d := newTestDirectory(h, Options{})
	before := d.Snapshot()

	d.Refresh(context.Background())

	if d.Snapshot() != before {
		t.Fatal("refresh while not ready must not publish a new snapshot")
	}
}

func TestRefreshExcludesClosedLobbies(t *testing.T) {
	rec := testRecord()
	h := &fakeHandler{ready: true, lobbies: []platform.Lobby{
		encoded(t, rec, false), // open=False
	}}
	d := newTestDirectory(h, Options{IncludeFull: true, IncludePrivate: true})

	d.Refresh(context.Background())

	if got := d.Snapshot().LobbyCount; got != 0 {
		t.Fatalf("closed lobby leaked into snapshot, count=%d", got)
	}
}

func TestRefreshFilterOrder(t *testing.T) {
	public := testRecord()

	private := testRecord()
	private.ID = 2
	private.Privacy = VisibilityPrivate

	locked := testRecord()
	locked.ID = 3
	locked.Privacy = VisibilityLocked

	friendsOnly := testRecord()
	friendsOnly.ID = 4
	friendsOnly.HostID = 77
	friendsOnly.Privacy = VisibilityFriendsOnly

	strangerOnly := testRecord()
	strangerOnly.ID = 5
	strangerOnly.HostID = 88
	strangerOnly.Privacy = VisibilityFriendsOnly

	full := testRecord()
	full.ID = 6
	full.PlayerCount = full.MaxPlayers

	mine := testRecord()
	mine.ID = 7

	h := &fakeHandler{
		ready:   true,
		friends: map[uint64]bool{77: true},
		lobbies: []platform.Lobby{
			encoded(t, public, true),
			encoded(t, private, true),
			encoded(t, locked, true),
			encoded(t, friendsOnly, true),
			encoded(t, strangerOnly, true),
			encoded(t, full, true),
			encoded(t, mine, true, func(l *mapLobby) { l.self = true }),
		},
	}
	d := newTestDirectory(h, Options{})

	d.Refresh(context.Background())

	snap := d.Snapshot()
	ids := make(map[uint64]bool)
	for _, rec := range snap.Lobbies {
		ids[rec.ID] = true
	}
	if !ids[public.ID] {
		t.Error("public lobby missing from snapshot")
	}
	if !ids[friendsOnly.ID] {
		t.Error("friends-only lobby of a friend missing from snapshot")
	}
	for _, id := range []uint64{private.ID, locked.ID, strangerOnly.ID, full.ID, mine.ID} {
		if ids[id] {
			t.Errorf("lobby %d should have been filtered out", id)
		}
	}
	if snap.PlayerCount != public.PlayerCount+friendsOnly.PlayerCount {
		t.Errorf("aggregate player count wrong: %d", snap.PlayerCount)
	}
}

func TestRefreshFailureRetainsSnapshot(t *testing.T) {
	rec := testRecord()
	h := &fakeHandler{ready: true, lobbies: []platform.Lobby{encoded(t, rec, true)}}
	d := newTestDirectory(h, Options{IncludeFull: true, IncludePrivate: true})

	d.Refresh(context.Background())
	first := d.Snapshot()
	if first.LobbyCount != 1 {
		t.Fatalf("expected one lobby, got %d", first.LobbyCount)
	}

	h.err = errors.New("upstream exploded")
	d.Refresh(context.Background())

	if d.Snapshot() != first {
		t.Fatal("failed refresh must retain the previous snapshot unchanged")
	}
}

func TestRefreshCapturedAtMonotonic(t *testing.T) {
	h := &fakeHandler{ready: true}
	d := newTestDirectory(h, Options{})

	var prev time.Time
	for i := 0; i < 5; i++ {
		d.Refresh(context.Background())
		got := d.Snapshot().CapturedAt
		if got.Before(prev) {
			t.Fatalf("capturedAt went backwards: %v < %v", got, prev)
		}
		prev = got
	}
}

func TestFilterPure(t *testing.T) {
	recs := []*Record{
		testRecord(),
		func() *Record { r := testRecord(); r.ID = 2; r.Privacy = VisibilityPrivate; return r }(),
		func() *Record { r := testRecord(); r.ID = 3; r.PlayerCount = r.MaxPlayers; return r }(),
	}

	got := Filter(recs, false, false, nil)
	if len(got) != 1 || got[0].ID != recs[0].ID {
		t.Fatalf("expected only the public non-full lobby, got %d records", len(got))
	}

	got = Filter(recs, true, true, nil)
	if len(got) != 3 {
		t.Fatalf("includeFull+includePrivate must keep everything, got %d", len(got))
	}
}

func TestIsPrivateFailsClosed(t *testing.T) {
	if !IsPrivate(nil, func(uint64) bool { return true }) {
		t.Fatal("nil record must be private")
	}
	rec := testRecord()
	rec.Privacy = VisibilityFriendsOnly
	if !IsPrivate(rec, nil) {
		t.Fatal("friends-only without a friends capability must be private")
	}
}
