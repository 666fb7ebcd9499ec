// Package handshake holds the per-connection state of one negotiation.
package handshake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/provider"
)

// State is the single handshake attached to one connection. It owns the
// provider session exclusively and, once the exchange completes, the
// identity the session produced.
//
// State is not locked: the transport delivers handshake requests on a
// connection strictly one at a time, so the only concurrent caller is
// the connection-close callback, which goes through Release.
type State struct {
	id        string
	session   provider.Session
	createdAt time.Time

	completed bool
	identity  *provider.Identity

	releaseOnce sync.Once
}

// New wraps a fresh provider session. The state takes ownership of the
// session and releases it when the owning connection closes.
func New(session provider.Session) *State {
	return &State{
		id:        uuid.NewString(),
		session:   session,
		createdAt: time.Now(),
	}
}

// ID identifies the handshake in log output.
func (s *State) ID() string { return s.id }

// CreatedAt reports when the handshake started.
func (s *State) CreatedAt() time.Time { return s.createdAt }

// Completed reports whether the exchange has finished. Once true it
// stays true for the life of the connection.
func (s *State) Completed() bool { return s.completed }

// Identity returns the stored identity, set exactly once when the
// exchange completes. Callers must copy it before handing it out.
func (s *State) Identity() *provider.Identity { return s.identity }

// Exchange feeds one incoming token to the session and latches the
// completion flag and identity on the completing leg.
func (s *State) Exchange(ctx context.Context, inToken []byte) (provider.Exchange, error) {
	res, err := s.session.Exchange(ctx, inToken)
	if err != nil {
		return provider.Exchange{}, err
	}

	if res.Outcome == provider.OutcomeComplete && !s.completed {
		s.completed = true
		s.identity = res.Identity
	}

	return res, nil
}

// Release frees the session and the stored identity's OS handle.
// Runs its body exactly once, no matter how often the transport reports
// connection teardown.
func (s *State) Release() error {
	var err error
	s.releaseOnce.Do(func() {
		err = errors.Join(s.session.Release(), s.identity.Release())
	})
	return err
}
