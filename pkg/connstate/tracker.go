package connstate

import (
	"context"
	"net"
	"net/http"
	"sync"
)

type slotContextKey struct{}

// Tracker is the net/http implementation of Store. It rides the two
// hooks http.Server exposes for connection lifetime: ConnContext stores
// a fresh Slot in every connection's base context, and ConnState fires
// the slot's close callbacks when the server is done with the
// connection.
//
//	tracker := connstate.NewTracker()
//	srv := &http.Server{Handler: mux}
//	tracker.Attach(srv)
type Tracker struct {
	mu    sync.Mutex
	conns map[net.Conn]*Slot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		conns: make(map[net.Conn]*Slot),
	}
}

// Attach wires the tracker into the server's connection hooks.
// Must be called before the server starts accepting connections.
func (t *Tracker) Attach(srv *http.Server) {
	srv.ConnContext = t.ConnContext
	srv.ConnState = t.ConnState
}

// ConnContext implements http.Server.ConnContext.
func (t *Tracker) ConnContext(ctx context.Context, c net.Conn) context.Context {
	slot := NewSlot(true)

	t.mu.Lock()
	t.conns[c] = slot
	t.mu.Unlock()

	return context.WithValue(ctx, slotContextKey{}, slot)
}

// ConnState implements http.Server.ConnState. A hijacked connection is
// treated as closed: the server will deliver no further requests on it,
// so its handshake state has nothing left to serve.
func (t *Tracker) ConnState(c net.Conn, state http.ConnState) {
	switch state {
	case http.StateClosed, http.StateHijacked:
	default:
		return
	}

	t.mu.Lock()
	slot := t.conns[c]
	delete(t.conns, c)
	t.mu.Unlock()

	if slot != nil {
		slot.Close()
	}
}

// Slot implements Store. Requests served by a server the tracker is not
// attached to carry no slot and report ErrUnsupported.
func (t *Tracker) Slot(r *http.Request) (*Slot, error) {
	slot, ok := r.Context().Value(slotContextKey{}).(*Slot)
	if !ok {
		return nil, ErrUnsupported
	}
	return slot, nil
}
