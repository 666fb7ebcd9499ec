package mocks

import (
	"context"
	"errors"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/provider"
)

// Leg scripts one exchange step of a ScriptedProvider session.
type Leg struct {
	Out      []byte
	Complete bool
	Identity *provider.Identity
	Err      error
}

// ScriptedProvider replays a fixed sequence of exchange legs. Every
// created session gets the same script and is recorded for assertions.
type ScriptedProvider struct {
	Script        []Leg
	NewSessionErr error

	Sessions []*ScriptedSession
}

// NewScriptedProvider creates a provider that replays the given legs.
func NewScriptedProvider(script ...Leg) *ScriptedProvider {
	return &ScriptedProvider{Script: script}
}

// NewSession returns a fresh scripted session.
func (p *ScriptedProvider) NewSession(_ context.Context) (provider.Session, error) {
	if p.NewSessionErr != nil {
		return nil, p.NewSessionErr
	}

	s := &ScriptedSession{script: p.Script}
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// ScriptedSession replays its provider's script, recording what it was
// fed and how often it was released.
type ScriptedSession struct {
	script []Leg
	next   int

	Received     [][]byte
	ReleaseCount int
}

// Exchange replays the next scripted leg.
func (s *ScriptedSession) Exchange(_ context.Context, inToken []byte) (provider.Exchange, error) {
	s.Received = append(s.Received, inToken)

	if s.next >= len(s.script) {
		return provider.Exchange{}, errors.New("scripted session exhausted")
	}

	leg := s.script[s.next]
	s.next++

	if leg.Err != nil {
		return provider.Exchange{}, leg.Err
	}

	res := provider.Exchange{
		Outcome: provider.OutcomeContinue,
		Token:   leg.Out,
	}
	if leg.Complete {
		res.Outcome = provider.OutcomeComplete
		res.Identity = leg.Identity
	}

	return res, nil
}

// Release counts release calls; the middleware must release each
// session exactly once.
func (s *ScriptedSession) Release() error {
	s.ReleaseCount++
	return nil
}

// FakeHandle is an OS identity handle stand-in that tracks clones and
// closes.
type FakeHandle struct {
	Closed bool

	// Clones lists every handle duplicated from this one, recursively
	// reachable for leak assertions.
	Clones []*FakeHandle
}

// Clone duplicates the handle.
func (h *FakeHandle) Clone() (provider.Handle, error) {
	clone := &FakeHandle{}
	h.Clones = append(h.Clones, clone)
	return clone, nil
}

// Close marks the handle closed.
func (h *FakeHandle) Close() error {
	if h.Closed {
		return errors.New("handle closed twice")
	}
	h.Closed = true
	return nil
}
