// Package negotiate implements server-side Negotiate-style HTTP
// authentication: a challenge/response token handshake carried over
// Authorization and WWW-Authenticate headers across multiple requests
// on the same connection.
package negotiate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-softwarelab/common/pkg/optional"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/connstate"
	"github.com/4chain-ag/go-negotiate-middleware/pkg/constants"
	"github.com/4chain-ag/go-negotiate-middleware/pkg/internal/handshake"
	"github.com/4chain-ag/go-negotiate-middleware/pkg/internal/logging"
	"github.com/4chain-ag/go-negotiate-middleware/pkg/provider"
)

// handshakeSlotKey is the fixed key under which the single handshake of
// a connection lives in its state slot.
type handshakeSlotKey struct{}

// Middleware drives the negotiation state machine for every inbound
// request.
type Middleware struct {
	provider             provider.Provider
	store                connstate.Store
	scheme               string
	allowUnauthenticated bool
	events               Events
	log                  *slog.Logger
}

// New creates the negotiate middleware.
func New(cfg Config) (*Middleware, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("connection state store is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = constants.SchemeNegotiate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Middleware{
		provider:             cfg.Provider,
		store:                cfg.Store,
		scheme:               cfg.Scheme,
		allowUnauthenticated: cfg.AllowUnauthenticated,
		events:               cfg.Events,
		log:                  logging.Child(cfg.Logger, "negotiate-middleware"),
	}, nil
}

// Handler returns standard http middleware: it runs the handshake state
// machine, exposes the authenticated principal through the request
// context and, unless AllowUnauthenticated is set, challenges requests
// that end up without one. Handshake errors are mapped to a 401.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := m.HandleRequest(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if decision == DecisionResponded {
			return
		}

		ctx := optional.OfValue(r.Context()).OrElseGet(context.Background)
		res := &authResult{}
		r = r.WithContext(context.WithValue(ctx, authResultKey{}, res))
		res.evaluate = func() (*Principal, error) { return m.Authenticate(r) }

		defer func() {
			if p := res.materialized(); p != nil {
				if err := p.Release(); err != nil {
					m.log.Warn("failed to release request principal", logging.Error(err))
				}
			}
		}()

		if !m.allowUnauthenticated {
			p, err := res.get()
			if err != nil {
				m.fail(r, err)
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			if p == nil {
				m.Challenge(w, r)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// HandleRequest runs one step of the handshake state machine and
// reports the outcome. Hosts with their own error mapping can drive it
// directly instead of using Handler.
//
// A nil error with DecisionResponded means a 401 challenge was written
// and processing must stop. Errors have already been reported through
// the OnAuthenticationFailed hook; the caller decides the response.
func (m *Middleware) HandleRequest(w http.ResponseWriter, r *http.Request) (Decision, error) {
	// HTTP/2 and later multiplex requests over one connection, so the
	// connection cannot anchor a per-handshake slot. Not an error: the
	// same handler may serve HTTP/1.1 connections that do support it.
	if r.ProtoMajor >= 2 {
		return DecisionPassThrough, nil
	}

	slot, err := m.store.Slot(r)
	if err != nil {
		if errors.Is(err, connstate.ErrUnsupported) {
			return DecisionPassThrough, nil
		}
		m.fail(r, err)
		return DecisionPassThrough, err
	}

	state := m.currentState(slot)

	header := r.Header.Get(constants.HeaderAuthorization)
	token, ok := parseAuthorization(header, m.scheme)
	if !ok {
		if header != "" && !schemeMatches(header, m.scheme) {
			// Some other scheme's request; never ours to intercept.
			return DecisionPassThrough, nil
		}
		if state != nil && !state.Completed() {
			// A bare request mid-handshake means the connection is no
			// longer exclusively carrying the handshake. Never silently
			// ignored: it may be handshake confusion across requests.
			err := ErrProtocolViolation
			m.fail(r, err)
			return DecisionPassThrough, err
		}
		return DecisionPassThrough, nil
	}

	if state != nil && state.Completed() {
		// Completed is terminal for the connection; stray tokens after
		// completion are left to the endpoint.
		return DecisionAuthenticated, nil
	}

	ctx := r.Context()

	if state == nil {
		state, err = m.createState(ctx, slot)
		if err != nil {
			m.fail(r, err)
			return DecisionPassThrough, err
		}
	}

	inToken, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		err = fmt.Errorf("negotiate: malformed authorization token: %w", err)
		m.fail(r, err)
		return DecisionPassThrough, err
	}

	res, err := state.Exchange(ctx, inToken)
	if err != nil {
		err = fmt.Errorf("negotiate: token exchange rejected: %w", err)
		m.fail(r, err)
		return DecisionPassThrough, err
	}

	var outToken string
	if len(res.Token) > 0 {
		outToken = base64.StdEncoding.EncodeToString(res.Token)
	}

	if res.Outcome == provider.OutcomeContinue {
		m.log.Debug("handshake continues",
			slog.String("handshake_id", state.ID()))
		w.Header().Add(constants.HeaderWWWAuthenticate, renderChallenge(m.scheme, outToken))
		w.WriteHeader(http.StatusUnauthorized)
		return DecisionResponded, nil
	}

	m.log.Debug("handshake completed",
		slog.String("handshake_id", state.ID()),
		slog.String("principal", state.Identity().Name))

	// Some mechanisms hand the client one last confirmation blob even on
	// success; it rides along with the normal response.
	if outToken != "" {
		w.Header().Add(constants.HeaderWWWAuthenticate, renderChallenge(m.scheme, outToken))
	}

	return DecisionAuthenticated, nil
}

// Authenticate evaluates the connection's handshake for the current
// request. A nil principal with nil error means "no result": the
// request is unauthenticated, not failed. Each call materializes a
// fresh principal; use Handler / PrincipalFromContext for the run-once
// request-scoped variant.
func (m *Middleware) Authenticate(r *http.Request) (*Principal, error) {
	if r.ProtoMajor >= 2 {
		return nil, nil
	}

	slot, err := m.store.Slot(r)
	if err != nil {
		return nil, nil
	}

	state := m.currentState(slot)
	if state == nil || !state.Completed() {
		return nil, nil
	}

	p, err := materializePrincipal(state.Identity())
	if err != nil {
		return nil, fmt.Errorf("negotiate: materialize principal: %w", err)
	}

	return p, nil
}

func (m *Middleware) currentState(slot *connstate.Slot) *handshake.State {
	v, ok := slot.Get(handshakeSlotKey{})
	if !ok {
		return nil
	}
	return v.(*handshake.State)
}

// createState starts a new handshake and binds its lifetime to the
// connection. Binding only happens after the close registration
// succeeded: a handshake must never outlive its connection.
func (m *Middleware) createState(ctx context.Context, slot *connstate.Slot) (*handshake.State, error) {
	session, err := m.provider.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("negotiate: create security session: %w", err)
	}

	state := handshake.New(session)

	err = slot.OnClose(func() {
		if err := state.Release(); err != nil {
			m.log.Warn("failed to release handshake state",
				slog.String("handshake_id", state.ID()),
				logging.Error(err))
			return
		}
		m.log.Debug("handshake state released",
			slog.String("handshake_id", state.ID()))
	})
	if err != nil {
		releaseErr := state.Release()
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedTransport, errors.Join(err, releaseErr))
	}

	slot.Set(handshakeSlotKey{}, state)

	m.log.Debug("handshake state created",
		slog.String("handshake_id", state.ID()))

	return state, nil
}

func (m *Middleware) fail(r *http.Request, err error) {
	m.log.Error("authentication failed",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		logging.Error(err))

	if m.events.OnAuthenticationFailed != nil {
		m.events.OnAuthenticationFailed(r.Context(), r, err)
	}
}
