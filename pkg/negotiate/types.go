package negotiate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/connstate"
	"github.com/4chain-ag/go-negotiate-middleware/pkg/provider"
)

// Decision is the HTTP-level outcome of running the handshake state
// machine for one request.
type Decision int

const (
	// DecisionPassThrough means the request was not intercepted; normal
	// processing continues without an established handshake result.
	DecisionPassThrough Decision = iota

	// DecisionResponded means a 401 challenge was written; the caller
	// must not run further handlers for this request.
	DecisionResponded

	// DecisionAuthenticated means the handshake is complete for this
	// connection; normal processing continues and authentication
	// evaluation will yield a principal.
	DecisionAuthenticated
)

var (
	// ErrUnsupportedTransport is reported when the host cannot anchor
	// handshake state to the connection or cannot notify on its close.
	ErrUnsupportedTransport = errors.New("negotiate: transport cannot anchor connection-scoped handshake state")

	// ErrProtocolViolation is reported when a request without a usable
	// handshake token arrives while a handshake is in progress on the
	// same connection.
	ErrProtocolViolation = errors.New("negotiate: request without a handshake token arrived mid-handshake")
)

// ChallengeContext is handed to the OnChallenge hook before the default
// 401 response is written. Setting Handled suppresses the default; the
// hook may write its own response instead.
type ChallengeContext struct {
	Response http.ResponseWriter
	Request  *http.Request
	Scheme   string
	Handled  bool
}

// Events are application hooks fired by the middleware.
type Events struct {
	// OnAuthenticationFailed fires before a handshake error propagates:
	// protocol violations, rejected tokens, session creation failures.
	OnAuthenticationFailed func(ctx context.Context, r *http.Request, err error)

	// OnChallenge fires before Challenge writes its default 401.
	OnChallenge func(c *ChallengeContext)
}

// Config configures the negotiate middleware.
type Config struct {
	// Provider performs the mechanism-level token exchanges. Required.
	Provider provider.Provider

	// Store anchors handshake state to connections. Required; use
	// connstate.NewTracker for net/http servers.
	Store connstate.Store

	// Scheme is the authentication scheme literal, "Negotiate" when
	// empty.
	Scheme string

	// AllowUnauthenticated lets requests without an established
	// identity through to the next handler. When false, Handler
	// challenges them instead.
	AllowUnauthenticated bool

	Logger *slog.Logger
	Events Events
}
