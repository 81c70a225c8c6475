// internal/session/local.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fusionlobby/flb/internal/platform"
)

// LocalSession is the second backend variant: it rides an ambient,
// already-authenticated platform client and runs no credential
// handshake of its own. It implements platform.Handler and shares the
// Authenticator's reconnect-on-drop behavior.
type LocalSession struct {
	log       *logrus.Logger
	transport platform.Transport

	// Reconnect pacing; overridable in tests.
	reconnectDelay      time.Duration
	reconnectEscalation time.Duration

	mu           sync.Mutex
	friends      map[uint64]struct{}
	reconnecting bool

	pumpOnce sync.Once
	done     chan struct{}
}

// NewLocalSession builds a LocalSession over the given transport.
func NewLocalSession(log *logrus.Logger, transport platform.Transport) *LocalSession {
	return &LocalSession{
		log:                 log,
		transport:           transport,
		reconnectDelay:      reconnectDelay,
		reconnectEscalation: reconnectEscalation,
		friends:             make(map[uint64]struct{}),
		done:                make(chan struct{}),
	}
}

// Connect brings the ambient client up and blocks until it reports
// connected or ctx is done.
func (s *LocalSession) Connect(ctx context.Context) error {
	s.startPump()

	s.log.Info("connecting through local platform client...")
	if err := s.transport.Connect(); err != nil {
		s.log.WithError(err).Error("initial connect failed, scheduling reconnect")
		s.scheduleReconnect()
	}

	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.transport.Connected() {
				return nil
			}
		}
	}
}

// Close stops the callback pump.
func (s *LocalSession) Close() {
	close(s.done)
}

// IsReady reports whether the ambient client is up.
func (s *LocalSession) IsReady() bool {
	return s.transport.Connected()
}

// Lobbies lists the platform's current lobbies.
func (s *LocalSession) Lobbies(ctx context.Context, includePrivate bool) ([]platform.Lobby, error) {
	if !s.IsReady() {
		return nil, ErrNotReady
	}
	return s.transport.ListLobbies(ctx, platform.LobbyQuery{IncludePrivate: includePrivate})
}

// IsFriend reports whether id is on the ambient account's friends list.
func (s *LocalSession) IsFriend(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.friends[id]
	return ok
}

func (s *LocalSession) startPump() {
	s.pumpOnce.Do(func() {
		cb := platform.Callbacks{
			OnDisconnected: s.onDisconnected,
			OnFriends:      s.onFriends,
		}
		go func() {
			ticker := time.NewTicker(pumpInterval)
			defer ticker.Stop()
			for {
				select {
				case <-s.done:
					return
				case <-ticker.C:
					s.transport.RunCallbacks(cb)
				}
			}
		}()
	})
}

func (s *LocalSession) onDisconnected(requested bool) {
	s.log.WithField("requested", requested).Info("local platform client disconnected")
	s.scheduleReconnect()
}

func (s *LocalSession) scheduleReconnect() {
	s.mu.Lock()
	if s.reconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
		}()

		delay := s.reconnectDelay
		for {
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			if s.transport.Connected() {
				return
			}
			s.log.Info("reconnecting local platform client...")
			if err := s.transport.Connect(); err != nil {
				s.log.WithError(err).Errorf("reconnect failed, next attempt in %s", s.reconnectEscalation)
				delay = s.reconnectEscalation
				continue
			}
			return
		}
	}()
}

func (s *LocalSession) onFriends(ids []uint64) {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.mu.Lock()
	s.friends = set
	s.mu.Unlock()
}
