package browser

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/api/schemas"
)

// State tracks where a session is in its lifecycle. Closed is terminal and
// idempotent to re-enter.
type State string

const (
	StateCreating        State = "creating"
	StateLoading         State = "loading"
	StateReady           State = "ready"
	StateLoginRedirected State = "login_redirected"
	StateTimedOut        State = "timed_out"
	StateClosed          State = "closed"
)

// Session is one ephemeral browser tab bound to a single submission attempt.
// It is never reused across attempts; ownership is exclusive to the
// orchestrating request.
type Session struct {
	id        string
	targetURL string
	finalURL  string

	ctx    context.Context
	cancel context.CancelFunc

	state   State
	stateMu sync.Mutex

	closeOnce sync.Once
	manager   *Manager
	logger    *zap.Logger
}

var _ schemas.Session = (*Session)(nil)

// ID returns the opaque session handle.
func (s *Session) ID() string { return s.id }

// TargetURL returns the URL the session was opened against.
func (s *Session) TargetURL() string { return s.targetURL }

// FinalURL returns the location resolved after load completion. Empty until
// the session is ready.
func (s *Session) FinalURL() string { return s.finalURL }

// Context returns the underlying browser context for running page actions.
func (s *Session) Context() context.Context { return s.ctx }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == StateClosed {
		// Closed is terminal; a late state write from a racing path must
		// not resurrect the session.
		return
	}
	s.state = next
}

// Close tears the session down. It is idempotent: calling it twice, or on a
// session whose browser context is already gone, is safe and never returns
// an error. Teardown failures are swallowed; a session that is already gone
// is a closed session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.stateMu.Lock()
		s.state = StateClosed
		s.stateMu.Unlock()

		if s.manager != nil {
			s.manager.unregister(s.id)
		}
		if s.cancel != nil {
			s.cancel()
		}
		if s.logger != nil {
			s.logger.Debug("Session closed")
		}
	})
}
