package dispatch

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Session tracks the handshake state of one server instance. The only transition is
// Uninitialized -> Initialized; repeated initialize calls leave it Initialized.
type Session struct {
	id          string
	initialized atomic.Bool
}

// NewSession returns an uninitialized session with a fresh id.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// MarkInitialized records a successful initialize. It reports whether this call performed the transition.
func (s *Session) MarkInitialized() bool {
	return s.initialized.CompareAndSwap(false, true)
}

// Initialized reports whether initialize has completed at least once.
func (s *Session) Initialized() bool {
	return s.initialized.Load()
}

// ID is the identifier handed to clients in the Mcp-Session-Id header.
func (s *Session) ID() string {
	return s.id
}
