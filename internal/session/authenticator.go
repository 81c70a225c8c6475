// internal/session/authenticator.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionlobby/flb/internal/platform"
)

// State is the authenticator's position in the session lifecycle.
// Transitions are serialized; the state is never "half-open".
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingChallenge
	StateLoggedIn
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingChallenge:
		return "awaiting-challenge"
	case StateLoggedIn:
		return "logged-in"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// reconnectDelay is waited after any disconnect before the single
	// scheduled reconnect attempt.
	reconnectDelay = 5 * time.Second

	// reconnectEscalation replaces reconnectDelay after a reconnect
	// attempt itself fails.
	reconnectEscalation = 60 * time.Second

	// pumpInterval paces the transport callback dispatch loop.
	pumpInterval = 50 * time.Millisecond

	// readyPoll paces Connect's readiness barrier.
	readyPoll = 250 * time.Millisecond
)

// ErrNotReady is returned by Lobbies while the session is not logged in.
var ErrNotReady = errors.New("session: not ready")

// Authenticator establishes and keeps alive one authenticated session
// to the platform. It implements platform.Handler.
type Authenticator struct {
	log       *logrus.Logger
	transport platform.Transport
	resolver  platform.ChallengeResolver

	username   string
	password   string
	deviceName string

	// Reconnect pacing; overridable in tests.
	reconnectDelay      time.Duration
	reconnectEscalation time.Duration

	mu           sync.Mutex
	state        State
	guardData    string
	friends      map[uint64]struct{}
	reconnecting bool

	pumpOnce sync.Once
	done     chan struct{}
}

// New builds an Authenticator. Missing credentials are a construction
// error: the session could never be established.
func New(log *logrus.Logger, transport platform.Transport, resolver platform.ChallengeResolver, username, password string) (*Authenticator, error) {
	if username == "" || password == "" {
		return nil, errors.New("session: username and password are required")
	}
	return &Authenticator{
		log:                 log,
		transport:           transport,
		resolver:            resolver,
		username:            username,
		password:            password,
		deviceName:          "Fusion Lobby Browser",
		reconnectDelay:      reconnectDelay,
		reconnectEscalation: reconnectEscalation,
		friends:             make(map[uint64]struct{}),
		done:                make(chan struct{}),
	}, nil
}

// Connect starts the session and blocks until it reaches LoggedIn,
// faults permanently, or ctx is done. Safe to treat as a readiness
// barrier: once it returns nil the session is usable.
func (a *Authenticator) Connect(ctx context.Context) error {
	a.startPump()

	a.setState(StateConnecting)
	a.log.Infof("connecting to platform as %s...", a.username)
	if err := a.transport.Connect(); err != nil {
		// The scheduled reconnect policy takes over from here.
		a.log.WithError(err).Error("initial connect failed, scheduling reconnect")
		a.scheduleReconnect()
	}

	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			switch a.CurrentState() {
			case StateLoggedIn:
				return nil
			case StateFaulted:
				return fmt.Errorf("session: authentication faulted: %w", platform.ErrAccessDenied)
			}
		}
	}
}

// Close stops the callback pump. The transport itself is left to its
// owner.
func (a *Authenticator) Close() {
	close(a.done)
}

// IsReady reports whether lobby queries can be served right now.
func (a *Authenticator) IsReady() bool {
	return a.transport.Connected() && a.CurrentState() == StateLoggedIn
}

// CurrentState returns the session state.
func (a *Authenticator) CurrentState() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Lobbies lists the platform's current lobbies through the live session.
func (a *Authenticator) Lobbies(ctx context.Context, includePrivate bool) ([]platform.Lobby, error) {
	if !a.IsReady() {
		return nil, ErrNotReady
	}
	return a.transport.ListLobbies(ctx, platform.LobbyQuery{IncludePrivate: includePrivate})
}

// IsFriend reports whether id is on the logged-in account's friends list.
func (a *Authenticator) IsFriend(id uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.friends[id]
	return ok
}

// startPump launches the dedicated ticking task that dispatches
// transport callbacks. Events are not delivered without it.
func (a *Authenticator) startPump() {
	a.pumpOnce.Do(func() {
		cb := platform.Callbacks{
			OnConnected:    a.onConnected,
			OnDisconnected: a.onDisconnected,
			OnLoggedOn:     a.onLoggedOn,
			OnLoggedOff:    a.onLoggedOff,
			OnFriends:      a.onFriends,
		}
		go func() {
			ticker := time.NewTicker(pumpInterval)
			defer ticker.Stop()
			for {
				select {
				case <-a.done:
					return
				case <-ticker.C:
					a.transport.RunCallbacks(cb)
				}
			}
		}()
	})
}

func (a *Authenticator) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == s {
		return
	}
	a.log.WithFields(logrus.Fields{"from": a.state.String(), "to": s.String()}).Debug("session state change")
	a.state = s
}

func (a *Authenticator) onConnected() {
	a.log.Infof("connected to platform, logging in as %s...", a.username)
	// The handshake blocks on challenge prompts, so it runs off the
	// callback dispatch loop.
	go a.handshake()
}

// handshake runs the credential handshake and finalizes the logon. Any
// failure tears the connection down and leaves recovery to the
// reconnect policy, except a permanent credential rejection, which
// faults the session.
func (a *Authenticator) handshake() {
	a.setState(StateAwaitingChallenge)

	a.mu.Lock()
	guard := a.guardData
	a.mu.Unlock()

	res, err := a.transport.BeginAuth(context.Background(), platform.AuthRequest{
		Username:   a.username,
		Password:   a.password,
		GuardData:  guard,
		Resolver:   a.resolver,
		DeviceName: a.deviceName,
	})
	if err != nil {
		if errors.Is(err, platform.ErrAccessDenied) {
			a.log.WithError(err).Error("platform rejected credentials")
			a.setState(StateFaulted)
			a.transport.Disconnect()
			return
		}
		a.log.WithError(err).Error("authentication handshake failed")
		a.transport.Disconnect()
		return
	}

	if res.NewGuardData != "" {
		a.mu.Lock()
		a.guardData = res.NewGuardData
		a.mu.Unlock()
	}

	if err := a.transport.LogOn(platform.LogOnDetails{
		AccountName:  res.AccountName,
		RefreshToken: res.RefreshToken,
	}); err != nil {
		a.log.WithError(err).Error("logon failed")
		a.transport.Disconnect()
	}
}

func (a *Authenticator) onDisconnected(requested bool) {
	a.log.WithField("requested", requested).Info("disconnected from platform")
	a.mu.Lock()
	if a.state != StateFaulted {
		a.state = StateDisconnected
	}
	faulted := a.state == StateFaulted
	a.mu.Unlock()
	if !faulted {
		a.scheduleReconnect()
	}
}

// scheduleReconnect arranges exactly one pending reconnect attempt.
// Attempts that themselves fail are retried indefinitely with the
// escalated delay.
func (a *Authenticator) scheduleReconnect() {
	a.mu.Lock()
	if a.reconnecting {
		a.mu.Unlock()
		return
	}
	a.reconnecting = true
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			a.reconnecting = false
			a.mu.Unlock()
		}()

		delay := a.reconnectDelay
		for {
			select {
			case <-a.done:
				return
			case <-time.After(delay):
			}
			if a.transport.Connected() || a.CurrentState() == StateFaulted {
				return
			}
			a.log.Info("reconnecting to platform...")
			if err := a.transport.Connect(); err != nil {
				a.log.WithError(err).Errorf("reconnect failed, next attempt in %s", a.reconnectEscalation)
				delay = a.reconnectEscalation
				continue
			}
			// Success or failure from here arrives as transport events.
			return
		}
	}()
}

func (a *Authenticator) onLoggedOn(err error) {
	if err != nil {
		a.log.WithError(err).Error("unable to log on to platform")
		a.setState(StateDisconnected)
		return
	}
	a.setState(StateLoggedIn)
	a.log.Infof("successfully logged in as %s", a.username)
}

func (a *Authenticator) onLoggedOff() {
	a.log.Info("logged off from platform")
	a.mu.Lock()
	if a.state == StateLoggedIn {
		a.state = StateDisconnected
	}
	a.mu.Unlock()
}

func (a *Authenticator) onFriends(ids []uint64) {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	a.mu.Lock()
	a.friends = set
	a.mu.Unlock()
}
