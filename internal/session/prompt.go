// internal/session/prompt.go
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// CodeFunc produces a one-time code for a challenge prompt. It should
// return promptly once ctx is cancelled; a cancelled prompt's answer is
// discarded.
type CodeFunc func(ctx context.Context, previousFailed bool) (string, error)

// EmailCodeFunc is a CodeFunc that also receives the masked email
// address the code was sent to.
type EmailCodeFunc func(ctx context.Context, email string, previousFailed bool) (string, error)

// ConfirmFunc blocks until the user approves the session out-of-band.
type ConfirmFunc func(ctx context.Context) error

// promptGate serializes challenge prompts: acquiring the gate cancels
// whatever prompt was pending before. Only the human-input wait is
// cancelled; network operations carry their own contexts.
type promptGate struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// acquire cancels the prior pending prompt, if any, and returns a
// context for the new one.
func (g *promptGate) acquire(ctx context.Context) (context.Context, context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	return ctx, cancel
}

// Resolver answers two-factor challenges through three channel
// strategies, holding at most one pending prompt at a time. A new
// prompt on any channel cancels the prior one: a stale prompt answered
// late must not race a newer disconnect/reconnect cycle.
type Resolver struct {
	log *logrus.Logger

	confirm ConfirmFunc
	code    CodeFunc
	email   EmailCodeFunc

	gate promptGate
}

// NewResolver builds a Resolver from the three channel strategies. Any
// nil strategy makes the corresponding channel fail immediately, which
// the platform treats as an unanswered challenge.
func NewResolver(log *logrus.Logger, confirm ConfirmFunc, code CodeFunc, email EmailCodeFunc) *Resolver {
	return &Resolver{log: log, confirm: confirm, code: code, email: email}
}

// ConfirmDevice waits for out-of-band device confirmation.
func (r *Resolver) ConfirmDevice(ctx context.Context) error {
	if r.confirm == nil {
		return context.Canceled
	}
	ctx, cancel := r.gate.acquire(ctx)
	defer cancel()
	r.log.Info("awaiting device confirmation...")
	return r.confirm(ctx)
}

// AuthenticatorCode prompts for a time-based one-time code.
func (r *Resolver) AuthenticatorCode(ctx context.Context, previousFailed bool) (string, error) {
	if r.code == nil {
		return "", context.Canceled
	}
	ctx, cancel := r.gate.acquire(ctx)
	defer cancel()
	if previousFailed {
		r.log.Warn("previous authenticator code was rejected, prompting again")
	}
	return r.code(ctx, previousFailed)
}

// EmailCode prompts for a code delivered to the account email.
func (r *Resolver) EmailCode(ctx context.Context, email string, previousFailed bool) (string, error) {
	if r.email == nil {
		return "", context.Canceled
	}
	ctx, cancel := r.gate.acquire(ctx)
	defer cancel()
	if previousFailed {
		r.log.Warn("previous email code was rejected, prompting again")
	}
	return r.email(ctx, email, previousFailed)
}
