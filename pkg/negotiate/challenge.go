package negotiate

import (
	"net/http"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/constants"
)

// Challenge writes a bare 401 challenge for the configured scheme.
// The surrounding authorization layer calls it when a request needs
// authentication and evaluation produced no result, or to explicitly
// re-challenge. The OnChallenge hook runs first and may suppress or
// replace the default response.
func (m *Middleware) Challenge(w http.ResponseWriter, r *http.Request) {
	// Evaluation runs at most once per request, even when the challenge
	// is issued from several call sites.
	if res, ok := r.Context().Value(authResultKey{}).(*authResult); ok {
		_, _ = res.get()
	}

	c := &ChallengeContext{Response: w, Request: r, Scheme: m.scheme}
	if m.events.OnChallenge != nil {
		m.events.OnChallenge(c)
		if c.Handled {
			return
		}
	}

	m.log.Debug("issuing authentication challenge")

	w.Header().Add(constants.HeaderWWWAuthenticate, renderChallenge(m.scheme, ""))
	w.WriteHeader(http.StatusUnauthorized)
}
