// Package provider defines the boundary between the negotiation
// middleware and the security mechanism that actually produces and
// consumes handshake tokens (SSPI, GSSAPI, NTLM, ...).
//
// The middleware never interprets token bytes. It creates one Session
// per connection, feeds it each incoming token and acts on the
// returned Exchange result.
package provider

import (
	"context"
	"io"
)

// Provider creates security sessions for server-side token exchanges.
//
// Implementations are mechanism-specific and out of scope for this
// module; tests and examples use scripted providers.
type Provider interface {
	// NewSession creates a fresh acceptor session. The session owns any
	// mechanism-level resources until Release is called.
	NewSession(ctx context.Context) (Session, error)
}

// Session is one in-progress server-side handshake.
//
// Sessions are NOT safe for concurrent use. Each connection owns
// exactly one session, and the host transport delivers handshake
// requests on a connection one at a time.
type Session interface {
	// Exchange processes one incoming token and produces the next leg.
	// A non-nil error means the token was rejected (corrupt, forged or
	// expired material); the session is not usable afterwards.
	Exchange(ctx context.Context, inToken []byte) (Exchange, error)

	// Release frees mechanism resources. Safe to call more than once.
	Release() error
}

// Outcome is the state of the handshake after an Exchange call.
type Outcome int

const (
	// OutcomeContinue means more legs are expected; Token must be sent
	// back to the client as a challenge.
	OutcomeContinue Outcome = iota

	// OutcomeComplete means the security context is established.
	// Identity is set and Token, if non-empty, is a final confirmation
	// blob the client expects alongside the normal response.
	OutcomeComplete
)

// Exchange is the explicit result of one token exchange leg.
type Exchange struct {
	Outcome  Outcome
	Token    []byte
	Identity *Identity
}

// Handle is an OS-level resource backing an identity, for example an
// SSPI access token. Clone duplicates the resource so the copy can be
// closed independently of the original.
type Handle interface {
	io.Closer
	Clone() (Handle, error)
}

// Identity is the mechanism's view of the authenticated subject.
//
// The stored instance may wrap a shared, mutable OS handle. Consumers
// must never hand it out by reference across requests; use Clone.
type Identity struct {
	Name   string
	Domain string
	Groups []string

	// Handle is nil for value-only identities.
	Handle Handle
}

// Clone returns a deep value copy of the identity. A non-nil Handle is
// duplicated, so the clone must be released by its receiver.
func (i *Identity) Clone() (*Identity, error) {
	if i == nil {
		return nil, nil
	}

	clone := &Identity{
		Name:   i.Name,
		Domain: i.Domain,
	}
	if i.Groups != nil {
		clone.Groups = append([]string(nil), i.Groups...)
	}

	if i.Handle != nil {
		handle, err := i.Handle.Clone()
		if err != nil {
			return nil, err
		}
		clone.Handle = handle
	}

	return clone, nil
}

// Release closes the identity's OS handle, if any.
func (i *Identity) Release() error {
	if i == nil || i.Handle == nil {
		return nil
	}
	return i.Handle.Close()
}
