package mocks

import (
	"net/http"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/connstate"
)

// ConnectionStore is a connstate.Store that serves one fixed slot, as
// if every request arrived on the same connection.
type ConnectionStore struct {
	SlotValue *connstate.Slot
	Err       error
}

// NewConnectionStore creates a store around a single close-notifying
// slot.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{SlotValue: connstate.NewSlot(true)}
}

// NewUnsupportedStore creates a store that reports every request's
// transport as unable to hold connection state.
func NewUnsupportedStore() *ConnectionStore {
	return &ConnectionStore{Err: connstate.ErrUnsupported}
}

// Slot implements connstate.Store.
func (s *ConnectionStore) Slot(_ *http.Request) (*connstate.Slot, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.SlotValue, nil
}

// CloseConnection fires the slot's close callbacks, as the transport
// would on connection teardown.
func (s *ConnectionStore) CloseConnection() {
	if s.SlotValue != nil {
		s.SlotValue.Close()
	}
}
