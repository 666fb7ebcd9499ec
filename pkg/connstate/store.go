// Package connstate anchors arbitrary state to the lifetime of an HTTP
// transport connection, so that a multi-request exchange (such as a
// connection-bound authentication handshake) can find its state again
// on the next request of the same connection.
package connstate

import (
	"errors"
	"net/http"
	"sync"
)

// ErrUnsupported is returned when the transport behind a request offers
// no stable connection identity to attach state to.
var ErrUnsupported = errors.New("connstate: transport does not support connection-scoped state")

// ErrNoCloseNotify is returned by Slot.OnClose when the transport
// cannot signal connection teardown.
var ErrNoCloseNotify = errors.New("connstate: transport does not notify on connection close")

// Store resolves the connection-scoped slot for a request.
type Store interface {
	// Slot returns the slot shared by all requests on the request's
	// underlying connection, or ErrUnsupported.
	Slot(r *http.Request) (*Slot, error)
}

// Slot is a keyed bag of values owned by one connection. It stays alive
// for the whole connection and is discarded, after running its close
// callbacks, when the connection goes away.
type Slot struct {
	mu          sync.Mutex
	values      map[any]any
	closeFns    []func()
	closed      bool
	closeNotify bool
}

// NewSlot creates a slot for a custom Store implementation.
// closeNotify declares whether the owning transport will call Close on
// connection teardown; when false, OnClose reports ErrNoCloseNotify.
func NewSlot(closeNotify bool) *Slot {
	return &Slot{
		values:      make(map[any]any),
		closeNotify: closeNotify,
	}
}

// Get returns the value stored under key, if any.
func (s *Slot) Get(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return v, ok
}

// GetOrCreate returns the value stored under key, creating and storing
// it via create when absent. A create error stores nothing.
func (s *Slot) GetOrCreate(key any, create func() (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		return v, nil
	}

	v, err := create()
	if err != nil {
		return nil, err
	}

	s.values[key] = v
	return v, nil
}

// Set stores value under key, replacing any existing value.
func (s *Slot) Set(key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
}

// Delete removes the value stored under key.
func (s *Slot) Delete(key any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
}

// OnClose registers fn to run exactly once when the connection closes.
// If the connection is already gone, fn runs synchronously before
// OnClose returns.
func (s *Slot) OnClose(fn func()) error {
	if !s.closeNotify {
		return ErrNoCloseNotify
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return nil
	}
	s.closeFns = append(s.closeFns, fn)
	s.mu.Unlock()

	return nil
}

// Close runs the registered callbacks. The owning Store calls it when
// the transport is finished with the connection. Guarded so that a
// transport reporting teardown twice still fires each callback once.
func (s *Slot) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	fns := s.closeFns
	s.closeFns = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
