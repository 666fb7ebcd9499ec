package negotiate

import (
	"context"
	"sync"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/provider"
)

// Principal is the request-scoped view of the authenticated subject.
// Every request gets a fresh copy built from the connection's stored
// identity; instances are never shared across requests.
type Principal struct {
	Name   string
	Domain string
	Groups []string

	handle provider.Handle
}

// Release frees the principal's duplicated OS handle, if any. The
// middleware calls this after the request handler returns; hosts
// driving HandleRequest directly own the call themselves.
func (p *Principal) Release() error {
	if p == nil || p.handle == nil {
		return nil
	}

	handle := p.handle
	p.handle = nil
	return handle.Close()
}

// materializePrincipal copies the stored identity into a fresh,
// independently releasable principal.
func materializePrincipal(identity *provider.Identity) (*Principal, error) {
	clone, err := identity.Clone()
	if err != nil {
		return nil, err
	}

	return &Principal{
		Name:   clone.Name,
		Domain: clone.Domain,
		Groups: clone.Groups,
		handle: clone.Handle,
	}, nil
}

type authResultKey struct{}

// authResult defers authentication evaluation until first use and
// guarantees it runs at most once per request, no matter how many call
// sites ask for the principal.
type authResult struct {
	mu        sync.Mutex
	evaluate  func() (*Principal, error)
	ran       bool
	principal *Principal
	err       error
}

func (a *authResult) get() (*Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ran {
		a.ran = true
		a.principal, a.err = a.evaluate()
	}

	return a.principal, a.err
}

// materialized returns the principal only if evaluation already ran.
// Used for end-of-request disposal, which must not trigger a fresh
// evaluation.
func (a *authResult) materialized() *Principal {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ran {
		return nil
	}
	return a.principal
}

// PrincipalFromContext returns the principal established for the
// current request, if any. "No result" (unauthenticated) and evaluation
// failure both report false; callers needing the error should use
// Middleware.Authenticate.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	res, ok := ctx.Value(authResultKey{}).(*authResult)
	if !ok {
		return nil, false
	}

	p, err := res.get()
	if err != nil || p == nil {
		return nil, false
	}

	return p, true
}
