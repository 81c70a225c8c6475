// internal/platform/platform.go
package platform

import (
	"context"
	"errors"
)

// ErrAccessDenied is returned (wrapped) by Transport.BeginAuth when the
// platform permanently rejects the credentials. Unlike transient
// network failures it must not be retried.
var ErrAccessDenied = errors.New("platform: access denied")

// Lobby is a single matchmaking lobby as returned by the platform,
// exposing its flat string key/value metadata.
type Lobby interface {
	// OwnerID returns the platform id of the lobby host.
	OwnerID() uint64

	// OwnedBySelf reports whether the logged-in account hosts this lobby.
	OwnedBySelf() bool

	// Data returns the metadata value for key, or "" if absent.
	Data(key string) string

	// LookupData returns the metadata value for key and whether a
	// non-empty value was present.
	LookupData(key string) (string, bool)
}

// LobbyQuery narrows a lobby listing request. Filtering beyond what the
// platform supports server-side is applied by the caller.
type LobbyQuery struct {
	// IncludePrivate asks the platform not to pre-filter lobbies whose
	// advertised visibility is private, locked or friends-only.
	IncludePrivate bool
}

// AuthRequest carries everything a transport needs to run the
// credential handshake for a new session.
type AuthRequest struct {
	Username string
	Password string

	// GuardData is the continuation token from a previous successful
	// handshake. Empty forces a fresh two-factor challenge.
	GuardData string

	// Resolver answers two-factor challenges raised during the handshake.
	Resolver ChallengeResolver

	// DeviceName is the friendly name reported to the platform.
	DeviceName string
}

// AuthResult is the outcome of a successful credential handshake.
type AuthResult struct {
	AccountName  string
	RefreshToken string

	// NewGuardData, when non-empty, replaces the stored continuation
	// token so the next reconnect can skip the challenge.
	NewGuardData string
}

// LogOnDetails finalizes a session using the handshake result.
type LogOnDetails struct {
	AccountName  string
	RefreshToken string
}

// ChallengeResolver resolves a two-factor challenge through one of
// three channels. Implementations must treat each call as a single-shot
// prompt: issuing a new prompt cancels any prior pending one.
type ChallengeResolver interface {
	// ConfirmDevice blocks until the user approves the session
	// out-of-band (e.g. a mobile push). No code value is produced.
	ConfirmDevice(ctx context.Context) error

	// AuthenticatorCode returns a time-based one-time code.
	// previousFailed is set when an earlier code was rejected.
	AuthenticatorCode(ctx context.Context, previousFailed bool) (string, error)

	// EmailCode returns a code delivered to the account email.
	EmailCode(ctx context.Context, email string, previousFailed bool) (string, error)
}

// Callbacks receives transport events. Fields may be nil; the transport
// skips nil handlers. Events are delivered only from RunCallbacks so
// the owner controls the dispatch goroutine.
type Callbacks struct {
	OnConnected    func()
	OnDisconnected func(requested bool)
	OnLoggedOn     func(err error)
	OnLoggedOff    func()
	OnFriends      func(ids []uint64)
}

// Transport is the raw connection to the platform. It is a process-wide
// singleton owned by exactly one session; other components never touch it.
type Transport interface {
	// Connect starts establishing the underlying connection. The
	// connected signal arrives later through Callbacks.
	Connect() error

	// Disconnect tears the connection down; a disconnected event with
	// requested=true follows.
	Disconnect()

	// Connected reports whether the underlying connection is up.
	Connected() bool

	// BeginAuth runs the credential handshake, raising two-factor
	// challenges through req.Resolver as needed.
	BeginAuth(ctx context.Context, req AuthRequest) (AuthResult, error)

	// LogOn finalizes the session. The result arrives via OnLoggedOn.
	LogOn(details LogOnDetails) error

	// ListLobbies fetches the current lobby list. Valid only while the
	// session is logged on.
	ListLobbies(ctx context.Context, q LobbyQuery) ([]Lobby, error)

	// RunCallbacks dispatches pending events to cb and returns. It must
	// be pumped continuously for events to be delivered.
	RunCallbacks(cb Callbacks)
}

// Handler is the platform capability consumed by the rest of the
// service: a readiness probe, the lobby list and the friends check.
type Handler interface {
	// Connect establishes the session, blocking until it is usable or
	// has permanently failed.
	Connect(ctx context.Context) error

	// IsReady reports whether lobby queries can currently be served.
	IsReady() bool

	// Lobbies returns the platform's current lobby list.
	Lobbies(ctx context.Context, includePrivate bool) ([]Lobby, error)

	// IsFriend reports whether the given platform id is mutually
	// friended with the logged-in account.
	IsFriend(id uint64) bool
}
